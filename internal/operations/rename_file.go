package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// RenameFileName is the registry name of RenameFile.
const RenameFileName = "renameFile"

type renameFileParams struct {
	From          string `mapstructure:"from" validate:"required"`
	To            string `mapstructure:"to" validate:"required,nefield=From"`
	Overwrite     bool   `mapstructure:"overwrite"`
	IgnoreMissing bool   `mapstructure:"ignoreMissing"`
}

// RenameFile moves a file or directory inside the target directory. A
// source that is gone while the destination exists counts as already done.
type RenameFile[T any] struct {
	*upgrade.BaseOperation[T]
	params renameFileParams
}

// NewRenameFile returns an unconfigured RenameFile.
func NewRenameFile[T any]() upgrade.Operation[T] {
	op := &RenameFile[T]{}
	op.BaseOperation = upgrade.NewBaseOperation[T](RenameFileName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *RenameFile[T]) Configure(params config.Params) error {
	return params.Decode(&o.params)
}

// DoExecute implements upgrade.Executor.
func (o *RenameFile[T]) DoExecute(_ context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}
	from, err := resolve(root, o.params.From)
	if err != nil {
		return err
	}
	to, err := resolve(root, o.params.To)
	if err != nil {
		return err
	}

	log := uctx.Logger().WithFields(map[string]any{"from": o.params.From, "to": o.params.To})

	srcExists, err := exists(from)
	if err != nil {
		return err
	}
	dstExists, err := exists(to)
	if err != nil {
		return err
	}

	switch {
	case !srcExists && dstExists:
		log.Debug("already renamed")
		return nil
	case !srcExists && o.params.IgnoreMissing:
		log.Info("source missing, nothing to rename")
		return nil
	case !srcExists:
		return fmt.Errorf("%s: %w", o.params.From, os.ErrNotExist)
	case dstExists && !o.params.Overwrite:
		return fmt.Errorf("%s already exists", o.params.To)
	case dstExists:
		if err := os.RemoveAll(to); err != nil {
			return fmt.Errorf("remove %s: %w", o.params.To, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return err
	}
	log.Info("file renamed")
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
