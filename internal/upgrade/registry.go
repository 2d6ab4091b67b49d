package upgrade

import (
	"fmt"
	"sort"
	"sync"

	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// Constructor returns a fresh, uninitialized operation.
type Constructor[T any] func() Operation[T]

// Registry maps operation names used in configuration to constructors. It is
// populated at process start and read while pipelines are built.
type Registry[T any] struct {
	mu    sync.RWMutex
	ctors map[string]Constructor[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{ctors: make(map[string]Constructor[T])}
}

// Register adds ctor under name. Names are unique.
func (r *Registry[T]) Register(name string, ctor Constructor[T]) error {
	if name == "" {
		return fmt.Errorf("operation name is empty")
	}
	if ctor == nil {
		return fmt.Errorf("operation %s: constructor is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("operation %s already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// MustRegister is Register for process start-up code; it panics on error.
func (r *Registry[T]) MustRegister(name string, ctor Constructor[T]) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Create instantiates the operation registered under name.
func (r *Registry[T]) Create(name string) (Operation[T], error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, commonserrors.NewConfigurationError(fmt.Sprintf("unknown operation %q", name), nil)
	}
	op := ctor()
	if op == nil {
		return nil, commonserrors.NewConfigurationError(fmt.Sprintf("constructor for operation %q returned nil", name), nil)
	}
	return op, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
