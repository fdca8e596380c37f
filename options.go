package lazyloading

import (
	"io"
	"log/slog"
	"time"

	"github.com/elyseeMB/lazyLoading/sessionkv"
)

// Options are the retry and reload budgets of a Loader.
//
// ImportRetries is the number of in-process re-attempts after the first failure.
// RetryDelay is the fixed pause before each re-attempt; zero retries immediately.
// MaxRetries is the number of full reloads allowed per import id before the
// failure reaches the caller.
type Options struct {
	ImportRetries int           `json:"importRetries" yaml:"import_retries"`
	RetryDelay    time.Duration `json:"retryDelay" yaml:"retry_delay"`
	MaxRetries    int           `json:"maxRetries" yaml:"max_retries"`
}

func DefaultOptions() Options {
	return Options{
		ImportRetries: 3,
		RetryDelay:    300 * time.Millisecond,
		MaxRetries:    3,
	}
}

func (o Options) Validate() error {
	if o.ImportRetries < 0 {
		return InvalidOptionsError{Field: "import_retries", Reason: "must not be negative"}
	}
	if o.RetryDelay < 0 {
		return InvalidOptionsError{Field: "retry_delay", Reason: "must not be negative"}
	}
	if o.MaxRetries < 0 {
		return InvalidOptionsError{Field: "max_retries", Reason: "must not be negative"}
	}
	return nil
}

type loaderConfig struct {
	failures    sessionkv.Store
	reloader    Reloader
	placeholder any
	logger      *slog.Logger
	metrics     *Metrics
}

// Option configures a Loader.
type Option func(*loaderConfig)

// WithFailureStore sets the session-scoped store holding reload counts.
// Defaults to a process-local sessionkv.Memory.
func WithFailureStore(store sessionkv.Store) Option {
	return func(c *loaderConfig) { c.failures = store }
}

// WithReloader sets the environment reload primitive. Required.
func WithReloader(r Reloader) Option {
	return func(c *loaderConfig) { c.reloader = r }
}

// WithPlaceholder sets the unit returned while a reload is in progress.
// Its type must match the loader's unit type.
func WithPlaceholder(unit any) Option {
	return func(c *loaderConfig) { c.placeholder = unit }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *loaderConfig) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *loaderConfig) { c.metrics = m }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
