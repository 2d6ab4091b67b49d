package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// GitCommitName is the registry name of GitCommit.
const GitCommitName = "gitCommit"

const defaultCommitMessage = "Upgrade from {from} to {to}"

type gitCommitParams struct {
	Message           string `mapstructure:"message"`
	AuthorName        string `mapstructure:"authorName"`
	AuthorEmail       string `mapstructure:"authorEmail" validate:"omitempty,email"`
	RequireRepository bool   `mapstructure:"requireRepository"`
}

// GitCommit stages every change in the target directory and commits it.
// Message placeholders {from} and {to} expand to the step's versions.
type GitCommit[T any] struct {
	*upgrade.BaseOperation[T]
	params gitCommitParams
	now    func() time.Time
}

// NewGitCommit returns an unconfigured GitCommit.
func NewGitCommit[T any]() upgrade.Operation[T] {
	op := &GitCommit[T]{now: time.Now}
	op.BaseOperation = upgrade.NewBaseOperation[T](GitCommitName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *GitCommit[T]) Configure(params config.Params) error {
	if err := params.Decode(&o.params); err != nil {
		return err
	}
	if o.params.Message == "" {
		o.params.Message = defaultCommitMessage
	}
	if o.params.AuthorName == "" {
		o.params.AuthorName = "upgrader"
	}
	if o.params.AuthorEmail == "" {
		o.params.AuthorEmail = "upgrader@localhost"
	}
	return nil
}

// DoExecute implements upgrade.Executor.
func (o *GitCommit[T]) DoExecute(_ context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}
	log := uctx.Logger()

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if o.params.RequireRepository {
			return fmt.Errorf("%w: %s is not a git repository", commonserrors.ErrNotSupported, root)
		}
		log.Info("not a git repository, skipping commit")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if status.IsClean() {
		log.Info("nothing to commit")
		return nil
	}

	hash, err := wt.Commit(o.message(), &git.CommitOptions{
		Author: &object.Signature{
			Name:  o.params.AuthorName,
			Email: o.params.AuthorEmail,
			When:  o.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.With("commit", hash.String()).Info("changes committed")
	return nil
}

func (o *GitCommit[T]) message() string {
	return strings.NewReplacer(
		"{from}", o.CurrentVersion().String(),
		"{to}", o.NextVersion().String(),
	).Replace(o.params.Message)
}
