package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// DeleteFilesName is the registry name of DeleteFiles.
const DeleteFilesName = "deleteFiles"

type deleteFilesParams struct {
	Paths      []string `mapstructure:"paths" validate:"required,min=1,dive,required"`
	PruneEmpty bool     `mapstructure:"pruneEmptyDirs"`
}

// DeleteFiles removes the files matching any of its glob patterns. Matching
// nothing is not an error.
type DeleteFiles[T any] struct {
	*upgrade.BaseOperation[T]
	params deleteFilesParams
}

// NewDeleteFiles returns an unconfigured DeleteFiles.
func NewDeleteFiles[T any]() upgrade.Operation[T] {
	op := &DeleteFiles[T]{}
	op.BaseOperation = upgrade.NewBaseOperation[T](DeleteFilesName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *DeleteFiles[T]) Configure(params config.Params) error {
	return params.Decode(&o.params)
}

// DoExecute implements upgrade.Executor.
func (o *DeleteFiles[T]) DoExecute(ctx context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}

	files, err := matchFiles(ctx, root, o.params.Paths)
	if err != nil {
		return err
	}

	log := uctx.Logger()
	for _, rel := range files {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", rel, err)
		}
		log.With("file", rel).Debug("file deleted")
		if o.params.PruneEmpty {
			pruneEmptyDirs(root, path.Dir(rel))
		}
	}

	log.With("deleted", len(files)).Info("files deleted")
	return nil
}

// pruneEmptyDirs removes dir and its parents below root while they are empty.
func pruneEmptyDirs(root, dir string) {
	for dir != "." && dir != "/" && dir != "" {
		full := filepath.Join(root, filepath.FromSlash(dir))
		entries, err := os.ReadDir(full)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(full); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}
