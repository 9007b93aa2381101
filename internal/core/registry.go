package core

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrNotRegistered is returned when resolving a name nobody registered.
	ErrNotRegistered = errors.New("core: service not registered")
	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("core: service already registered")
	// ErrServiceType is returned when a registered value has a different type
	// than requested.
	ErrServiceType = errors.New("core: service type mismatch")
)

// Well-known registry names wired by the CLI.
const (
	ServiceCatalog = "catalog"
	ServiceBlob    = "blob"
	ServiceExports = "exports"
	ServiceLogger  = "logger"
)

// Registry is an explicit service locator. Everything must be registered
// before it is resolved; there are no implicit defaults.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{services: make(map[string]any)} }

// Register binds value to name.
func (r *Registry) Register(name string, value any) error {
	if name == "" {
		return errors.New("core: service name required")
	}
	if value == nil {
		return fmt.Errorf("core: service %q: nil value", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("%q: %w", name, ErrAlreadyRegistered)
	}
	r.services[name] = value
	return nil
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the value registered under name as a T.
func Resolve[T any](r *Registry, name string) (T, error) {
	var zero T
	r.mu.RLock()
	value, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%q: %w", name, ErrNotRegistered)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%q is %T, want %T: %w", name, value, zero, ErrServiceType)
	}
	return typed, nil
}

// MustResolve is Resolve for wiring code: a missing or mistyped service is a
// programming error and panics.
func MustResolve[T any](r *Registry, name string) T {
	v, err := Resolve[T](r, name)
	if err != nil {
		panic(err)
	}
	return v
}
