package lazyloading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Supplier[string] = (*Lazy[string])(nil)

type supplierFunc struct {
	id string
	fn func(ctx context.Context) (string, error)
}

func (s supplierFunc) ID() string { return s.id }

func (s supplierFunc) Load(ctx context.Context) (string, error) { return s.fn(ctx) }

func TestLazy_MemoizesSuccess(t *testing.T) {
	var calls int32
	z := NewLazy[string](supplierFunc{id: "route:home", fn: func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "home", nil
	}})

	assert.False(t, z.Resolved())
	for i := 0; i < 3; i++ {
		unit, err := z.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "home", unit)
	}
	assert.True(t, z.Resolved())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "route:home", z.ID())
}

func TestLazy_DoesNotMemoizeFailure(t *testing.T) {
	var calls int32
	z := NewLazy[string](supplierFunc{id: "route:test", fn: func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errChunk
		}
		return "test", nil
	}})

	_, err := z.Get(context.Background())
	require.ErrorIs(t, err, errChunk)
	assert.False(t, z.Resolved())

	unit, err := z.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", unit)
}

func TestLazy_ConcurrentFirstResolutionSharesOneLoad(t *testing.T) {
	var calls int32
	z := NewLazy[string](supplierFunc{id: "route:home", fn: func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		return "home", nil
	}})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unit, err := z.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "home", unit)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLazy_Await(t *testing.T) {
	z := NewLazy[string](supplierFunc{id: "route:home", fn: func(context.Context) (string, error) {
		return "home", nil
	}})
	res := <-z.Await(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, "home", res.Unit)
}

func TestLazy_RenderRoutesFailuresToBoundary(t *testing.T) {
	z := NewLazy[string](supplierFunc{id: "route:fail", fn: func(context.Context) (string, error) {
		return "", errChunk
	}})

	var boundaryID string
	var boundaryErr error
	err := z.Render(context.Background(), func(string) error {
		t.Fatal("view must not run on failure")
		return nil
	}, func(id string, err error) {
		boundaryID, boundaryErr = id, err
	})
	require.ErrorIs(t, err, errChunk)
	assert.Equal(t, "route:fail", boundaryID)
	assert.ErrorIs(t, boundaryErr, errChunk)
}

func TestLazy_RenderView(t *testing.T) {
	z := NewLazy[string](supplierFunc{id: "route:home", fn: func(context.Context) (string, error) {
		return "home", nil
	}})

	var seen string
	err := z.Render(context.Background(), func(unit string) error {
		seen = unit
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", seen)

	viewErr := errors.New("template error")
	var boundaryErr error
	err = z.Render(context.Background(), func(string) error { return viewErr }, func(_ string, err error) {
		boundaryErr = err
	})
	require.ErrorIs(t, err, viewErr)
	assert.ErrorIs(t, boundaryErr, viewErr)
}
