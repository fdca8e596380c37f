package lazyloading

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Result carries the outcome of an asynchronous resolution.
type Result[T any] struct {
	Unit T
	Err  error
}

// ErrorBoundary receives failures that reach the rendering layer.
type ErrorBoundary func(id string, err error)

// Lazy resolves a Supplier once and then serves the resolved unit, the way a
// lazily loaded component resolves once per page life. Concurrent first
// resolutions share a single load request. Failures are not memoized.
//
// A Lazy belongs to one environment generation; a reload discards it together
// with anything it resolved, including a reload placeholder.
type Lazy[T any] struct {
	supplier Supplier[T]

	mu       sync.RWMutex
	resolved bool
	unit     T

	sf singleflight.Group
}

func NewLazy[T any](supplier Supplier[T]) *Lazy[T] {
	return &Lazy[T]{supplier: supplier}
}

func (z *Lazy[T]) ID() string {
	return z.supplier.ID()
}

// Load implements Supplier so a Lazy can stand in for its loader.
func (z *Lazy[T]) Load(ctx context.Context) (T, error) {
	return z.Get(ctx)
}

// Get returns the resolved unit, loading it on first use.
func (z *Lazy[T]) Get(ctx context.Context) (T, error) {
	if unit, ok := z.cached(); ok {
		return unit, nil
	}

	v, err, _ := z.sf.Do(z.supplier.ID(), func() (any, error) {
		if unit, ok := z.cached(); ok {
			return unit, nil
		}
		unit, err := z.supplier.Load(ctx)
		if err != nil {
			return nil, err
		}
		z.mu.Lock()
		z.unit = unit
		z.resolved = true
		z.mu.Unlock()
		return unit, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	unit, _ := v.(T)
	return unit, nil
}

// Resolved reports whether a unit is already memoized.
func (z *Lazy[T]) Resolved() bool {
	_, ok := z.cached()
	return ok
}

func (z *Lazy[T]) cached() (T, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.unit, z.resolved
}

// Await resolves in the background. The channel yields exactly one Result.
func (z *Lazy[T]) Await(ctx context.Context) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		unit, err := z.Get(ctx)
		out <- Result[T]{Unit: unit, Err: err}
	}()
	return out
}

// Render waits for the unit and hands it to view. Failures, from the load or
// from view, go to boundary when it is set and are returned as well.
func (z *Lazy[T]) Render(ctx context.Context, view func(T) error, boundary ErrorBoundary) error {
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-z.Await(ctx):
		err = res.Err
		if err == nil && view != nil {
			err = view(res.Unit)
		}
	}
	if err != nil && boundary != nil {
		boundary(z.supplier.ID(), err)
	}
	return err
}
