package lazyloading

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

type registeredImport struct {
	fn       any
	unitType string
}

// Registry stores import operations by their stable id (a route or module
// identifier). Registration rejects duplicates so two different imports can
// never share one persisted failure count.
type Registry struct {
	mu      sync.RWMutex
	imports map[string]registeredImport
}

func NewRegistry() *Registry {
	return &Registry{
		imports: make(map[string]registeredImport),
	}
}

// Register registers one import operation with generics.
func Register[T any](r *Registry, id string, fn Import[T]) error {
	if r == nil {
		return fmt.Errorf("register import: registry is nil")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("register import: id is empty")
	}
	if fn == nil {
		return fmt.Errorf("register import: import func is nil for %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.imports[id]; exists {
		return DuplicateImportError{ID: id}
	}
	r.imports[id] = registeredImport{
		fn:       fn,
		unitType: reflect.TypeOf((*T)(nil)).Elem().String(),
	}
	return nil
}

// MustRegister panics on registration error; intended for bootstrap code paths.
func MustRegister[T any](r *Registry, id string, fn Import[T]) {
	if err := Register(r, id, fn); err != nil {
		panic(err)
	}
}

// Lookup is a typed accessor for a registered import.
func Lookup[T any](r *Registry, id string) (Import[T], error) {
	r.mu.RLock()
	entry, ok := r.imports[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ImportNotFoundError{ID: id}
	}
	fn, ok := entry.fn.(Import[T])
	if !ok {
		return nil, TypeMismatchError{
			ID:       id,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   entry.unitType,
		}
	}
	return fn, nil
}

// WrapRegistered looks up id and wraps it in a Loader keyed by the same id.
func WrapRegistered[T any](r *Registry, id string, cfg Options, opts ...Option) (*Loader[T], error) {
	fn, err := Lookup[T](r, id)
	if err != nil {
		return nil, err
	}
	return Wrap(id, fn, cfg, opts...)
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.imports))
	for id := range r.imports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
