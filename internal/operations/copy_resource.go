package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/resource"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// CopyResourceName is the registry name of CopyResource.
const CopyResourceName = "copyResource"

type copyResourceParams struct {
	Source       string `mapstructure:"source" validate:"required"`
	Destination  string `mapstructure:"destination" validate:"required"`
	SkipExisting bool   `mapstructure:"skipExisting"`
}

// CopyResource writes a resource from the context's loader into the target
// directory.
type CopyResource[T any] struct {
	*upgrade.BaseOperation[T]
	params copyResourceParams
}

// NewCopyResource returns an unconfigured CopyResource.
func NewCopyResource[T any]() upgrade.Operation[T] {
	op := &CopyResource[T]{}
	op.BaseOperation = upgrade.NewBaseOperation[T](CopyResourceName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *CopyResource[T]) Configure(params config.Params) error {
	return params.Decode(&o.params)
}

// DoExecute implements upgrade.Executor.
func (o *CopyResource[T]) DoExecute(ctx context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}
	dest, err := resolve(root, o.params.Destination)
	if err != nil {
		return err
	}

	log := uctx.Logger().WithFields(map[string]any{
		"source":      o.params.Source,
		"destination": o.params.Destination,
	})

	existing, err := os.ReadFile(dest)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read destination: %w", err)
	}
	if exists && o.params.SkipExisting {
		log.Info("destination exists, skipping copy")
		return nil
	}

	data, err := resource.ReadAll(ctx, uctx.Loader(), o.params.Source)
	if err != nil {
		return err
	}
	if exists && bytes.Equal(existing, data) {
		log.Debug("destination already up to date")
		return nil
	}

	if err := writeFileAtomic(dest, data, fileMode(dest)); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	log.Info("resource copied")
	return nil
}
