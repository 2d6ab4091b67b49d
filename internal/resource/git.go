package resource

import (
	"context"
	"errors"
	"fmt"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitLoader serves resources from the committed tree of a git repository at
// a fixed revision. Uncommitted working-tree changes are never visible.
type GitLoader struct {
	repo     *git.Repository
	revision string
}

// NewGitLoader wraps an already opened repository. An empty revision reads
// from HEAD.
func NewGitLoader(repo *git.Repository, revision string) *GitLoader {
	return &GitLoader{repo: repo, revision: revision}
}

// OpenGitLoader opens the repository at dir.
func OpenGitLoader(dir, revision string) (*GitLoader, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", dir, err)
	}
	return NewGitLoader(repo, revision), nil
}

// Open implements Loader.
func (l *GitLoader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	commit, err := l.commit()
	if err != nil {
		return nil, err
	}

	file, err := commit.File(cleaned)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, notFound(name, nil)
		}
		return nil, fmt.Errorf("lookup %s at %s: %w", name, commit.Hash, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", name, commit.Hash, err)
	}
	return reader, nil
}

func (l *GitLoader) commit() (*object.Commit, error) {
	rev := l.revision
	if rev == "" {
		rev = plumbing.HEAD.String()
	}

	hash, err := l.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %s: %w", rev, err)
	}

	commit, err := l.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}
	return commit, nil
}

var _ Loader = (*GitLoader)(nil)
