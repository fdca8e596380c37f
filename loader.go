package lazyloading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/elyseeMB/lazyLoading/sessionkv"
)

// Loader wraps an Import with a bounded in-process retry loop and a reload
// escalation guarded by a persisted per-id failure count.
type Loader[T any] struct {
	id   string
	fn   Import[T]
	opts Options

	failures    sessionkv.Store
	reloader    Reloader
	placeholder T

	logger  *slog.Logger
	metrics *Metrics
}

// Wrap builds a Loader for fn. id must be stable across reloads; it keys the
// persisted failure count, so two different imports must never share one.
func Wrap[T any](id string, fn Import[T], cfg Options, opts ...Option) (*Loader[T], error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("wrap import: id is empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("wrap import %q: import func is nil", id)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("wrap import %q: %w", id, err)
	}

	var c loaderConfig
	for _, opt := range opts {
		opt(&c)
	}
	if c.reloader == nil {
		return nil, fmt.Errorf("wrap import %q: reloader is nil", id)
	}
	if c.failures == nil {
		c.failures = sessionkv.NewMemory()
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}

	l := &Loader[T]{
		id:       id,
		fn:       fn,
		opts:     cfg,
		failures: c.failures,
		reloader: c.reloader,
		logger:   c.logger.With("import", id),
		metrics:  c.metrics,
	}
	if c.placeholder != nil {
		unit, ok := c.placeholder.(T)
		if !ok {
			return nil, TypeMismatchError{
				ID:       id,
				Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
				Actual:   fmt.Sprintf("%T", c.placeholder),
			}
		}
		l.placeholder = unit
	}
	return l, nil
}

// MustWrap panics on error; intended for route tables built at startup.
func MustWrap[T any](id string, fn Import[T], cfg Options, opts ...Option) *Loader[T] {
	l, err := Wrap(id, fn, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Loader[T]) ID() string {
	return l.id
}

func (l *Loader[T]) Options() Options {
	return l.opts
}

// Load resolves the unit.
//
// On success the persisted failure count is cleared. Once retries are
// exhausted, Load either requests a reload and returns the placeholder with a
// nil error, or, when the reload budget is spent, returns the import's own
// error unchanged. A cancelled ctx ends the load without counting a failure.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	unit, err := l.attempt(ctx)
	if err == nil {
		if delErr := l.failures.Del(ctx, l.id); delErr != nil {
			l.logger.Warn("clear failure count", "error", delErr)
		}
		return unit, nil
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	count, readErr := l.failureCount(ctx)
	if readErr != nil {
		// Without a readable count a reload could loop forever.
		l.logger.Error("read failure count", "error", readErr, "cause", err)
		l.metrics.terminal(l.id)
		return zero, err
	}
	if count >= l.opts.MaxRetries {
		l.logger.Error("import failed, reload budget exhausted",
			"reloads", count, "max_retries", l.opts.MaxRetries, "error", err)
		l.metrics.terminal(l.id)
		return zero, err
	}

	next := count + 1
	if setErr := l.failures.Set(ctx, l.id, strconv.Itoa(next)); setErr != nil {
		l.logger.Error("persist failure count", "error", setErr, "cause", err)
		l.metrics.terminal(l.id)
		return zero, err
	}

	l.logger.Warn("import failed, reloading environment",
		"reload", next, "max_retries", l.opts.MaxRetries, "error", err)
	l.metrics.reload(l.id)
	l.reloader.Reload(ctx, ReloadRequest{ID: l.id, Attempt: next, Cause: err})
	return l.placeholder, nil
}

// attempt invokes the import at most ImportRetries+1 times.
func (l *Loader[T]) attempt(ctx context.Context) (T, error) {
	var zero T
	for retries := 0; ; retries++ {
		unit, err := l.fn(ctx)
		if err == nil {
			l.metrics.attempt(l.id, outcomeSuccess)
			return unit, nil
		}
		l.metrics.attempt(l.id, outcomeFailure)
		if retries >= l.opts.ImportRetries {
			return zero, err
		}
		l.logger.Warn("import failed, retrying",
			"retry", retries+1, "import_retries", l.opts.ImportRetries, "error", err)
		if err := sleep(ctx, l.opts.RetryDelay); err != nil {
			return zero, err
		}
	}
}

// failureCount returns the persisted count; an absent key counts as zero.
// A value that is not a non-negative integer is reported as an error.
func (l *Loader[T]) failureCount(ctx context.Context) (int, error) {
	raw, err := l.failures.Get(ctx, l.id)
	if errors.Is(err, sessionkv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("corrupt failure count %q for %s", raw, l.id)
	}
	return n, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
