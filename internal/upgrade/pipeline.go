package upgrade

import (
	"context"

	"github.com/alexisbeaulieu97/commons/internal/version"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// StepFunc is called before each operation of a pipeline runs.
type StepFunc[T any] func(index int, op Operation[T])

// Pipeline is the ordered list of operations resolved for one target.
type Pipeline[T any] struct {
	ops  []Operation[T]
	from version.Version
	to   version.Version
}

// NewPipeline returns a pipeline running ops in the given order.
func NewPipeline[T any](ops ...Operation[T]) *Pipeline[T] {
	return &Pipeline[T]{ops: ops}
}

// Execute runs every operation in order and stops at the first failure.
func (p *Pipeline[T]) Execute(ctx context.Context, uctx Context[T]) error {
	return p.ExecuteObserved(ctx, uctx, nil)
}

// ExecuteObserved is Execute with a callback invoked before each operation.
// Cancellation of ctx is honoured between operations.
func (p *Pipeline[T]) ExecuteObserved(ctx context.Context, uctx Context[T], onStep StepFunc[T]) error {
	description := ""
	if uctx != nil {
		description = uctx.String()
	}

	for i, op := range p.ops {
		if err := ctx.Err(); err != nil {
			return commonserrors.NewOperationError(op.Name(), description, err)
		}
		if onStep != nil {
			onStep(i, op)
		}
		if err := op.Execute(ctx, uctx); err != nil {
			if _, ok := commonserrors.KindOf(err); !ok {
				err = commonserrors.NewOperationError(op.Name(), description, err)
			}
			return err
		}
	}
	return nil
}

// Operations returns a copy of the operation list.
func (p *Pipeline[T]) Operations() []Operation[T] {
	out := make([]Operation[T], len(p.ops))
	copy(out, p.ops)
	return out
}

// Names returns the operation names in execution order.
func (p *Pipeline[T]) Names() []string {
	names := make([]string, len(p.ops))
	for i, op := range p.ops {
		names[i] = op.Name()
	}
	return names
}

func (p *Pipeline[T]) Len() int    { return len(p.ops) }
func (p *Pipeline[T]) Empty() bool { return len(p.ops) == 0 }

// From is the target version the pipeline was resolved against.
func (p *Pipeline[T]) From() version.Version { return p.from }

// To is the version the target holds once the pipeline completes. It equals
// From for an empty pipeline.
func (p *Pipeline[T]) To() version.Version { return p.to }
