package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	lazyloading "github.com/elyseeMB/lazyLoading"
)

// ErrTooManyReloads is returned when a run exceeds WithMaxGenerations.
var ErrTooManyReloads = errors.New("reload: too many generations")

// Generation identifies one environment lifetime.
// Number starts at 1; Cause is nil for the first generation.
type Generation struct {
	Number int
	Cause  *lazyloading.ReloadRequest
}

// Factory builds the environment for one generation. The reloader passed in
// is the host itself, ready to hand to loaders.
type Factory[E any] func(ctx context.Context, gen Generation, reloader lazyloading.Reloader) (E, error)

// Result describes one Run.
type Result struct {
	Generations int
	Reloads     []lazyloading.ReloadRequest
}

// Host keeps the active environment and restarts it on reload requests.
type Host[E any] struct {
	factory        Factory[E]
	logger         *slog.Logger
	maxGenerations int

	mu      sync.Mutex
	gen     int
	cancel  context.CancelFunc
	pending *lazyloading.ReloadRequest
}

type Option func(*options)

type options struct {
	logger         *slog.Logger
	maxGenerations int
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxGenerations caps the generations of one Run; zero means no cap.
func WithMaxGenerations(n int) Option {
	return func(o *options) { o.maxGenerations = n }
}

func New[E any](factory Factory[E], opts ...Option) (*Host[E], error) {
	if factory == nil {
		return nil, fmt.Errorf("new reload host: factory is nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxGenerations < 0 {
		return nil, fmt.Errorf("new reload host: negative max generations %d", o.maxGenerations)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host[E]{
		factory:        factory,
		logger:         o.logger,
		maxGenerations: o.maxGenerations,
	}, nil
}

// Reload implements lazyloading.Reloader. The first request of a generation
// wins; the generation context is cancelled immediately.
func (h *Host[E]) Reload(_ context.Context, req lazyloading.ReloadRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel == nil || h.pending != nil {
		return
	}
	r := req
	h.pending = &r
	h.cancel()
}

// Generation returns the number of the active (or last) generation.
func (h *Host[E]) Generation() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

// Run executes entry until a generation finishes without requesting a reload.
// The returned error is entry's error from that last generation.
func (h *Host[E]) Run(ctx context.Context, entry func(ctx context.Context, env E) error) (Result, error) {
	if entry == nil {
		return Result{}, fmt.Errorf("run reload host: entry is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result Result
		cause  *lazyloading.ReloadRequest
	)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if h.maxGenerations > 0 && result.Generations >= h.maxGenerations {
			return result, fmt.Errorf("%w: %d", ErrTooManyReloads, result.Generations)
		}

		genCtx, cancel := context.WithCancel(ctx)
		h.mu.Lock()
		h.gen++
		gen := Generation{Number: h.gen, Cause: cause}
		h.cancel = cancel
		h.pending = nil
		h.mu.Unlock()
		result.Generations++

		runErr := h.runGeneration(genCtx, gen, entry)

		h.mu.Lock()
		req := h.pending
		h.cancel = nil
		h.pending = nil
		h.mu.Unlock()
		cancel()

		if req == nil {
			return result, runErr
		}
		h.logger.Warn("environment reload", "generation", gen.Number, "import", req.ID, "attempt", req.Attempt)
		result.Reloads = append(result.Reloads, *req)
		cause = req
	}
}

func (h *Host[E]) runGeneration(ctx context.Context, gen Generation, entry func(context.Context, E) error) error {
	env, err := h.factory(ctx, gen, h)
	if err != nil {
		return fmt.Errorf("build generation %d: %w", gen.Number, err)
	}
	h.logger.Debug("generation started", "generation", gen.Number)

	runErr := entry(ctx, env)

	if closer, ok := any(env).(io.Closer); ok {
		if err := closer.Close(); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("close generation %d: %w", gen.Number, err))
		}
	}
	return runErr
}
