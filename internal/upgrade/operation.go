package upgrade

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/version"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// Operation is one step of a pipeline, bound to a version transition.
type Operation[T any] interface {
	Name() string
	// Init binds the transition and hands the operation its parameters. It
	// must be called exactly once, before Execute.
	Init(current, next version.Version, params config.Params) error
	Execute(ctx context.Context, uctx Context[T]) error
	Enabled() bool
	SetEnabled(enabled bool)
	CurrentVersion() version.Version
	NextVersion() version.Version
}

// Executor is the operation-specific work wrapped by BaseOperation.
type Executor[T any] interface {
	DoExecute(ctx context.Context, uctx Context[T]) error
}

// Configurable is implemented by executors that read parameters from their
// configuration entry.
type Configurable interface {
	Configure(params config.Params) error
}

// ExecuteFunc adapts a function to Executor.
type ExecuteFunc[T any] func(ctx context.Context, uctx Context[T]) error

// DoExecute implements Executor.
func (f ExecuteFunc[T]) DoExecute(ctx context.Context, uctx Context[T]) error {
	return f(ctx, uctx)
}

// BaseOperation implements the bookkeeping shared by every operation:
// version binding, the enabled switch and error normalization. Concrete
// operations embed a *BaseOperation built with themselves as the Executor.
type BaseOperation[T any] struct {
	name        string
	impl        Executor[T]
	current     version.Version
	next        version.Version
	enabled     bool
	initialized bool
}

// NewBaseOperation returns an enabled, uninitialized operation named name.
func NewBaseOperation[T any](name string, impl Executor[T]) *BaseOperation[T] {
	return &BaseOperation[T]{name: name, impl: impl, enabled: true}
}

// NewFuncOperation builds an operation from a plain function.
func NewFuncOperation[T any](name string, fn ExecuteFunc[T]) *BaseOperation[T] {
	return NewBaseOperation[T](name, fn)
}

func (b *BaseOperation[T]) Name() string                    { return b.name }
func (b *BaseOperation[T]) Enabled() bool                   { return b.enabled }
func (b *BaseOperation[T]) SetEnabled(enabled bool)         { b.enabled = enabled }
func (b *BaseOperation[T]) CurrentVersion() version.Version { return b.current }
func (b *BaseOperation[T]) NextVersion() version.Version    { return b.next }

// Init binds the version pair and configures the executor when it accepts
// parameters. Configuration problems surface as KindConfiguration errors.
func (b *BaseOperation[T]) Init(current, next version.Version, params config.Params) error {
	if b.initialized {
		return commonserrors.NewConfigurationError(fmt.Sprintf("operation %s initialized twice", b.name), nil)
	}

	b.current = current
	b.next = next

	if c, ok := b.impl.(Configurable); ok {
		if params == nil {
			params = config.Params{}
		}
		if err := c.Configure(params); err != nil {
			return commonserrors.NewConfigurationError(fmt.Sprintf("invalid configuration for operation %s", b.name), err)
		}
	}

	b.initialized = true
	return nil
}

// Execute runs the executor unless the operation is disabled. Errors and
// panics raised by the executor are returned as KindOperation errors naming
// the operation and the target.
func (b *BaseOperation[T]) Execute(ctx context.Context, uctx Context[T]) (err error) {
	if uctx == nil {
		return commonserrors.NewOperationError(b.name, "", fmt.Errorf("upgrade context is nil"))
	}
	if !b.initialized {
		return commonserrors.NewConfigurationError(fmt.Sprintf("operation %s executed before init", b.name), nil)
	}

	log := uctx.Logger().WithFields(map[string]any{
		"operation": b.name,
		"from":      b.current.String(),
		"to":        b.next.String(),
	})

	if !b.enabled {
		log.Info("operation disabled, skipping")
		return nil
	}
	if b.impl == nil {
		return commonserrors.NewOperationError(b.name, uctx.String(), fmt.Errorf("operation has no implementation"))
	}

	defer func() {
		if r := recover(); r != nil {
			err = commonserrors.NewOperationError(b.name, uctx.String(), fmt.Errorf("panic: %v", r))
			log.Error(err, "operation panicked")
		}
	}()

	log.Debug("executing operation")
	if execErr := b.impl.DoExecute(ctx, uctx); execErr != nil {
		err = commonserrors.NewOperationError(b.name, uctx.String(), execErr)
		log.Error(execErr, "operation failed")
		return err
	}

	log.Info("operation completed")
	return nil
}
