// Package upgrade walks targets through ordered, versioned sequences of
// operations built from declarative configuration.
package upgrade

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/resource"
)

// Context carries one target and the collaborators its operations need for
// the duration of a single upgrade run.
type Context[T any] interface {
	Target() T
	// String describes the target in logs and errors.
	String() string
	WorkDir() string
	Loader() resource.Loader
	Logger() *logger.Logger
}

// ContextFactory builds a fresh Context for each upgrade of a target.
type ContextFactory[T any] interface {
	NewContext(ctx context.Context, target T) (Context[T], error)
}

// ContextFactoryFunc adapts a function to ContextFactory.
type ContextFactoryFunc[T any] func(ctx context.Context, target T) (Context[T], error)

// NewContext implements ContextFactory.
func (f ContextFactoryFunc[T]) NewContext(ctx context.Context, target T) (Context[T], error) {
	return f(ctx, target)
}

// BasicContext is the plain Context implementation. Its fields are fixed once
// the With* builders have run.
type BasicContext[T any] struct {
	target      T
	description string
	workDir     string
	loader      resource.Loader
	log         *logger.Logger
}

// NewBasicContext returns a context for target. An empty description falls
// back to the target's default formatting.
func NewBasicContext[T any](target T, description string) *BasicContext[T] {
	if description == "" {
		description = fmt.Sprint(target)
	}
	return &BasicContext[T]{target: target, description: description}
}

// WithWorkDir sets the directory operations resolve relative paths against.
func (c *BasicContext[T]) WithWorkDir(dir string) *BasicContext[T] {
	c.workDir = dir
	return c
}

// WithLoader sets the resource loader operations read auxiliary files from.
func (c *BasicContext[T]) WithLoader(loader resource.Loader) *BasicContext[T] {
	c.loader = loader
	return c
}

// WithLogger sets the logger; the target description is attached to it.
func (c *BasicContext[T]) WithLogger(log *logger.Logger) *BasicContext[T] {
	c.log = log.With("target", c.description)
	return c
}

func (c *BasicContext[T]) Target() T               { return c.target }
func (c *BasicContext[T]) String() string          { return c.description }
func (c *BasicContext[T]) WorkDir() string         { return c.workDir }
func (c *BasicContext[T]) Loader() resource.Loader { return c.loader }
func (c *BasicContext[T]) Logger() *logger.Logger  { return c.log }
