package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	lazyloading "github.com/elyseeMB/lazyLoading"
	"github.com/elyseeMB/lazyLoading/exp/reload"
	"github.com/elyseeMB/lazyLoading/sessionkv"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	routeHome = "home"
	routeFail = "fail"
	routeTest = "test"

	simulatedChunk = "voiture"
)

var errLoad = errors.New("route chunk failed to load")

// app wires one session: the failure store and the simulated server outlive
// reloads, everything in page is rebuilt per generation.
type app struct {
	cfg    Config
	out    io.Writer
	logger *slog.Logger

	session  string
	failures sessionkv.Store
	closers  []func() error

	server   *lazyloading.ArtifactStore
	imports  *lazyloading.Registry
	registry *prometheus.Registry
	metrics  *lazyloading.Metrics
}

type page struct {
	deployer lazyloading.Deployer
	routes   map[string]*lazyloading.Lazy[string]
}

func newApp(ctx context.Context, cfg Config, out io.Writer, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		out:      out,
		logger:   logger,
		session:  cfg.Store.Session,
		registry: prometheus.NewRegistry(),
	}
	if a.session == "" {
		a.session = uuid.NewString()
	}
	a.metrics = lazyloading.NewMetrics(a.registry)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	a.server = lazyloading.NewArtifactStore(
		lazyloading.WithLatency(cfg.Simulator.MinLatency, cfg.Simulator.MaxLatency),
		lazyloading.WithStoreLogger(logger.With("component", "simulator")),
		lazyloading.WithStoreMetrics(a.metrics),
	)
	a.imports = newImports(a.server)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	c := a.cfg.Store
	switch c.Backend {
	case backendMemory:
		a.failures = sessionkv.NewMemory()
	case backendRedis:
		client := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("ping redis: %w", err)
		}
		store, err := sessionkv.NewRedis(client, a.session, c.TTL)
		if err != nil {
			_ = client.Close()
			return err
		}
		a.failures = store
		a.closers = append(a.closers, client.Close)
	case backendPostgres:
		pool, err := pgxpool.New(ctx, c.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		store, err := sessionkv.NewPostgres(pool, a.session)
		if err != nil {
			pool.Close()
			return err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.failures = store
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
	case backendSQLite:
		store, err := sessionkv.OpenSQLite(c.Path, a.session)
		if err != nil {
			return err
		}
		a.failures = store
		a.closers = append(a.closers, store.Close)
	}
	a.logger.Debug("failure store opened", "backend", c.Backend, "session", a.session)
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newImports(server *lazyloading.ArtifactStore) *lazyloading.Registry {
	reg := lazyloading.NewRegistry()
	lazyloading.MustRegister(reg, routeHome, func(context.Context) (string, error) {
		return "Home", nil
	})
	lazyloading.MustRegister(reg, routeFail, func(context.Context) (string, error) {
		return "", errLoad
	})
	lazyloading.MustRegister(reg, routeTest, func(ctx context.Context) (string, error) {
		artifact, err := server.Fetch(ctx, simulatedChunk)
		if err != nil {
			return "", err
		}
		return artifact.Render(), nil
	})
	return reg
}

func (a *app) newPage(_ context.Context, gen reload.Generation, reloader lazyloading.Reloader) (page, error) {
	if gen.Cause != nil && a.cfg.Simulator.SyncOnReload {
		a.server.SyncClientVersion()
	}
	p := page{
		deployer: a.server,
		routes:   make(map[string]*lazyloading.Lazy[string]),
	}
	for _, id := range a.imports.IDs() {
		loader, err := lazyloading.WrapRegistered[string](a.imports, id, a.cfg.Loader,
			lazyloading.WithFailureStore(a.failures),
			lazyloading.WithReloader(reloader),
			lazyloading.WithLogger(a.logger.With("generation", gen.Number)),
			lazyloading.WithMetrics(a.metrics),
		)
		if err != nil {
			return page{}, err
		}
		p.routes[id] = lazyloading.NewLazy[string](loader)
	}
	return p, nil
}

// run navigates to route and renders it, reloading as the loaders request.
// deployAfter > 0 schedules one deploy during the first generation, the way a
// debug hook fires a deployment at an arbitrary time.
func (a *app) run(ctx context.Context, route string, deployAfter time.Duration) (reload.Result, error) {
	if _, ok := routeSet(a.imports)[route]; !ok {
		return reload.Result{}, fmt.Errorf("unknown route %q (routes: %v)", route, a.imports.IDs())
	}

	host, err := reload.New(a.newPage,
		reload.WithLogger(a.logger),
		reload.WithMaxGenerations(a.cfg.MaxGenerations),
	)
	if err != nil {
		return reload.Result{}, err
	}

	return host.Run(ctx, func(ctx context.Context, p page) error {
		if route == routeTest && a.cfg.Simulator.DeployOnNavigate {
			p.deployer.Deploy()
		}
		if deployAfter > 0 && host.Generation() == 1 {
			go deployLater(ctx, p.deployer, deployAfter)
		}

		err := p.routes[route].Render(ctx, func(unit string) error {
			if unit == "" {
				return nil
			}
			_, err := fmt.Fprintln(a.out, unit)
			return err
		}, func(id string, err error) {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(a.out, "error boundary [%s]: %v\n", id, err)
		})
		if ctx.Err() != nil {
			// The generation was abandoned by a reload.
			return nil
		}
		return err
	})
}

func deployLater(ctx context.Context, d lazyloading.Deployer, after time.Duration) {
	timer := time.NewTimer(after)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		d.Deploy()
	}
}

func routeSet(reg *lazyloading.Registry) map[string]struct{} {
	ids := reg.IDs()
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func printSummary(w io.Writer, status lazyloading.Status, result reload.Result) {
	fmt.Fprintf(w, "generations: %d\n", result.Generations)
	reloads := append([]lazyloading.ReloadRequest(nil), result.Reloads...)
	sort.SliceStable(reloads, func(i, j int) bool { return reloads[i].Attempt < reloads[j].Attempt })
	for _, r := range reloads {
		fmt.Fprintf(w, "reload %d (%s): %v\n", r.Attempt, r.ID, r.Cause)
	}
	fmt.Fprintf(w, "client=%s deployed=%s stale=%t\n", status.ClientKnown, status.Deployed, status.Stale)
}
