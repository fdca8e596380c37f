package reload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	lazyloading "github.com/elyseeMB/lazyLoading"
	"github.com/elyseeMB/lazyLoading/sessionkv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ lazyloading.Reloader = (*Host[struct{}])(nil)

type closingEnv struct {
	closed *int32
}

func (e closingEnv) Close() error {
	atomic.AddInt32(e.closed, 1)
	return nil
}

func TestRun_SingleGeneration(t *testing.T) {
	var built int32
	host, err := New(func(_ context.Context, gen Generation, _ lazyloading.Reloader) (int, error) {
		atomic.AddInt32(&built, 1)
		assert.Equal(t, 1, gen.Number)
		assert.Nil(t, gen.Cause)
		return gen.Number, nil
	})
	require.NoError(t, err)

	entryErr := errors.New("render failed")
	result, err := host.Run(context.Background(), func(_ context.Context, env int) error {
		return entryErr
	})
	require.ErrorIs(t, err, entryErr)
	assert.Equal(t, 1, result.Generations)
	assert.Empty(t, result.Reloads)
	assert.Equal(t, int32(1), atomic.LoadInt32(&built))
	assert.Equal(t, 1, host.Generation())
}

func TestRun_ReloadStartsNextGeneration(t *testing.T) {
	var closed int32
	var causes []*lazyloading.ReloadRequest

	host, err := New(func(_ context.Context, gen Generation, _ lazyloading.Reloader) (closingEnv, error) {
		causes = append(causes, gen.Cause)
		return closingEnv{closed: &closed}, nil
	})
	require.NoError(t, err)

	var sawCancel atomic.Bool
	result, err := host.Run(context.Background(), func(ctx context.Context, _ closingEnv) error {
		if host.Generation() == 1 {
			host.Reload(ctx, lazyloading.ReloadRequest{ID: "route:test", Attempt: 1})
			// A second request in the same generation is ignored.
			host.Reload(ctx, lazyloading.ReloadRequest{ID: "route:other", Attempt: 1})
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sawCancel.Load())
	assert.Equal(t, 2, result.Generations)
	require.Len(t, result.Reloads, 1)
	assert.Equal(t, "route:test", result.Reloads[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&closed))

	require.Len(t, causes, 2)
	assert.Nil(t, causes[0])
	require.NotNil(t, causes[1])
	assert.Equal(t, "route:test", causes[1].ID)
}

func TestRun_MaxGenerations(t *testing.T) {
	host, err := New(func(context.Context, Generation, lazyloading.Reloader) (struct{}, error) {
		return struct{}{}, nil
	}, WithMaxGenerations(3))
	require.NoError(t, err)

	result, err := host.Run(context.Background(), func(ctx context.Context, _ struct{}) error {
		host.Reload(ctx, lazyloading.ReloadRequest{ID: "loop"})
		return nil
	})
	require.ErrorIs(t, err, ErrTooManyReloads)
	assert.Equal(t, 3, result.Generations)
	assert.Len(t, result.Reloads, 3)
}

func TestRun_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	host, err := New(func(context.Context, Generation, lazyloading.Reloader) (struct{}, error) {
		return struct{}{}, boom
	})
	require.NoError(t, err)

	_, err = host.Run(context.Background(), func(context.Context, struct{}) error { return nil })
	require.ErrorIs(t, err, boom)
}

func TestNew_Validation(t *testing.T) {
	_, err := New[struct{}](nil)
	require.Error(t, err)

	_, err = New(func(context.Context, Generation, lazyloading.Reloader) (struct{}, error) {
		return struct{}{}, nil
	}, WithMaxGenerations(-1))
	require.Error(t, err)

	host, err := New(func(context.Context, Generation, lazyloading.Reloader) (struct{}, error) {
		return struct{}{}, nil
	})
	require.NoError(t, err)
	_, err = host.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestReloadOutsideRunIsIgnored(t *testing.T) {
	host, err := New(func(context.Context, Generation, lazyloading.Reloader) (struct{}, error) {
		return struct{}{}, nil
	})
	require.NoError(t, err)
	host.Reload(context.Background(), lazyloading.ReloadRequest{ID: "x"})

	result, err := host.Run(context.Background(), func(context.Context, struct{}) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generations)
}

type page struct {
	store *lazyloading.ArtifactStore
	view  *lazyloading.Lazy[*lazyloading.Artifact]
}

// newPageFactory mirrors a browser tab: every generation gets a fresh
// simulator while the failure store outlives reloads.
func newPageFactory(failures sessionkv.Store, cfg lazyloading.Options) Factory[page] {
	return func(_ context.Context, _ Generation, reloader lazyloading.Reloader) (page, error) {
		store := lazyloading.NewArtifactStore(lazyloading.WithLatency(0, 0))
		loader, err := lazyloading.Wrap("route:test", func(ctx context.Context) (*lazyloading.Artifact, error) {
			return store.Fetch(ctx, "voiture")
		}, cfg,
			lazyloading.WithFailureStore(failures),
			lazyloading.WithReloader(reloader),
		)
		if err != nil {
			return page{}, err
		}
		return page{store: store, view: lazyloading.NewLazy[*lazyloading.Artifact](loader)}, nil
	}
}

func TestRun_StaleRouteExhaustsReloadBudget(t *testing.T) {
	failures := sessionkv.NewMemory()
	cfg := lazyloading.Options{ImportRetries: 1, RetryDelay: 0, MaxRetries: 2}

	host, err := New(newPageFactory(failures, cfg), WithMaxGenerations(10))
	require.NoError(t, err)

	var rendered []*lazyloading.Artifact
	result, err := host.Run(context.Background(), func(ctx context.Context, p page) error {
		// Navigating to the route deploys before the chunk is fetched.
		p.store.Deploy()
		a, err := p.view.Get(ctx)
		if err != nil {
			return err
		}
		rendered = append(rendered, a)
		return nil
	})

	var stale lazyloading.StaleVersionError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "voiture", stale.Name)
	assert.Equal(t, lazyloading.VersionTag(1), stale.Requested)
	assert.Equal(t, lazyloading.VersionTag(2), stale.Deployed)

	assert.Equal(t, 3, result.Generations)
	require.Len(t, result.Reloads, 2)
	assert.Equal(t, 1, result.Reloads[0].Attempt)
	assert.Equal(t, 2, result.Reloads[1].Attempt)

	// Placeholders from reloading generations are never rendered as artifacts.
	for _, a := range rendered {
		assert.Nil(t, a)
	}

	v, err := failures.Get(context.Background(), "route:test")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestRun_ReloadHealsStaleClient(t *testing.T) {
	failures := sessionkv.NewMemory()
	cfg := lazyloading.Options{ImportRetries: 0, RetryDelay: 0, MaxRetries: 3}

	host, err := New(newPageFactory(failures, cfg))
	require.NoError(t, err)

	var got *lazyloading.Artifact
	result, err := host.Run(context.Background(), func(ctx context.Context, p page) error {
		if host.Generation() == 1 {
			p.store.Deploy()
		}
		a, err := p.view.Get(ctx)
		if err != nil {
			return err
		}
		got = a
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Generations)
	require.NotNil(t, got)
	assert.Equal(t, "voiture", got.Name)

	_, err = failures.Get(context.Background(), "route:test")
	assert.ErrorIs(t, err, sessionkv.ErrNotFound)
}
