package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileLoader serves resources from a directory on the local filesystem.
type FileLoader struct {
	root string
}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{root: dir}
}

// Open implements Loader.
func (l *FileLoader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	full := filepath.Join(l.root, filepath.FromSlash(cleaned))
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(name, nil)
		}
		return nil, fmt.Errorf("stat resource %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("resource %s is a directory", name)
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open resource %s: %w", name, err)
	}
	return f, nil
}

var _ Loader = (*FileLoader)(nil)
