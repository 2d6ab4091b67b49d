package upgrade

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/commons/internal/version"
)

// VersionProvider reads and writes the version recorded for a target.
// Implementations report malformed stored values by wrapping
// version.ErrInvalid.
type VersionProvider[T any] interface {
	GetVersion(ctx context.Context, target T) (version.Version, error)
	SetVersion(ctx context.Context, target T, v version.Version) error
}

// UpdateVersionName is the registry name of the version-update operation.
const UpdateVersionName = "updateVersion"

// UpdateVersionOperation records the bound next version for the target. It
// is the last step of every non-empty pipeline, so a run that stops early
// leaves the target at its previous version.
type UpdateVersionOperation[T any] struct {
	*BaseOperation[T]
	versions VersionProvider[T]
}

// NewUpdateVersionOperation returns the terminal operation writing through
// versions.
func NewUpdateVersionOperation[T any](versions VersionProvider[T]) *UpdateVersionOperation[T] {
	op := &UpdateVersionOperation[T]{versions: versions}
	op.BaseOperation = NewBaseOperation[T](UpdateVersionName, op)
	return op
}

// DoExecute writes NextVersion, whatever version the target had before.
func (o *UpdateVersionOperation[T]) DoExecute(ctx context.Context, uctx Context[T]) error {
	if o.versions == nil {
		return fmt.Errorf("no version provider configured")
	}
	next := o.NextVersion()
	if err := o.versions.SetVersion(ctx, uctx.Target(), next); err != nil {
		return fmt.Errorf("record version %s: %w", next, err)
	}
	uctx.Logger().With("version", next.String()).Info("target version updated")
	return nil
}
