package lazyloading

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultMinLatency = 500 * time.Millisecond
	defaultMaxLatency = 1500 * time.Millisecond
)

// BuildFunc produces the body of an artifact being materialized.
type BuildFunc func(ctx context.Context, name string, version VersionTag) ([]byte, error)

// WaitFunc suspends a fetch for its simulated latency.
type WaitFunc func(ctx context.Context, d time.Duration) error

// ArtifactStore simulates a deployment that serves versioned artifacts.
//
// It provides:
// 1) a deployed version advanced by Deploy and a client-known version advanced by SyncClientVersion
// 2) fetches that fail when the two differ at resolution time
// 3) a catalog materializing each (name, version) once, with singleflight deduplication
type ArtifactStore struct {
	mu          sync.RWMutex
	counter     VersionTag
	deployed    VersionTag
	clientKnown VersionTag
	catalog     map[string]*Artifact

	sf singleflight.Group

	minLatency time.Duration
	maxLatency time.Duration
	wait       WaitFunc
	build      BuildFunc
	now        func() time.Time

	logger  *slog.Logger
	metrics *Metrics
}

// StoreOption configures an ArtifactStore.
type StoreOption func(*ArtifactStore)

// WithLatency sets the simulated latency range [min, max).
// When max <= min every fetch waits exactly min.
func WithLatency(min, max time.Duration) StoreOption {
	return func(s *ArtifactStore) {
		s.minLatency = min
		s.maxLatency = max
	}
}

// WithWait replaces the latency suspension, mainly for tests that need to
// interleave a deploy with an in-flight fetch.
func WithWait(wait WaitFunc) StoreOption {
	return func(s *ArtifactStore) { s.wait = wait }
}

func WithBuilder(build BuildFunc) StoreOption {
	return func(s *ArtifactStore) { s.build = build }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *ArtifactStore) { s.now = now }
}

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *ArtifactStore) { s.logger = logger }
}

func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *ArtifactStore) { s.metrics = m }
}

func NewArtifactStore(opts ...StoreOption) *ArtifactStore {
	s := &ArtifactStore{
		catalog:    make(map[string]*Artifact),
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		wait:       sleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	if s.minLatency < 0 {
		s.minLatency = 0
	}

	initial := s.nextTagLocked()
	s.deployed = initial
	s.clientKnown = initial
	if s.metrics != nil {
		s.metrics.DeployedVersion.Set(float64(initial))
	}
	return s
}

func (s *ArtifactStore) nextTagLocked() VersionTag {
	s.counter++
	return s.counter
}

// Deploy advances the deployed version to a fresh tag.
func (s *ArtifactStore) Deploy() Deployment {
	s.mu.Lock()
	d := Deployment{Previous: s.deployed}
	s.deployed = s.nextTagLocked()
	d.Current = s.deployed
	s.mu.Unlock()

	s.logger.Info("deploy", "from", d.Previous.String(), "to", d.Current.String())
	s.metrics.deployed(d.Current)
	return d
}

// SyncClientVersion makes the client adopt the deployed version.
func (s *ArtifactStore) SyncClientVersion() VersionTag {
	s.mu.Lock()
	s.clientKnown = s.deployed
	v := s.clientKnown
	s.mu.Unlock()

	s.logger.Info("client version synced", "version", v.String())
	return v
}

// Status returns a snapshot of both versions.
func (s *ArtifactStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		ClientKnown: s.clientKnown,
		Deployed:    s.deployed,
		Stale:       s.clientKnown != s.deployed,
	}
}

// Len returns the number of materialized artifacts.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.catalog)
}

// Fetch resolves the artifact for name at the client-known version.
//
// Versions are compared after the simulated latency, so a deploy that lands
// while the fetch is in flight makes it fail with StaleVersionError.
func (s *ArtifactStore) Fetch(ctx context.Context, name string) (*Artifact, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("fetch artifact: name is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.wait(ctx, s.latency()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	requested, deployed := s.clientKnown, s.deployed
	cached, ok := s.catalog[artifactKey(name, requested)]
	s.mu.RUnlock()

	if requested != deployed {
		s.logger.Warn("stale fetch", "name", name, "requested", requested.String(), "deployed", deployed.String())
		s.metrics.fetch(name, fetchStale)
		return nil, StaleVersionError{Name: name, Requested: requested, Deployed: deployed}
	}
	if ok {
		s.metrics.fetch(name, fetchOK)
		return cached, nil
	}

	a, err := s.materialize(ctx, name, requested)
	if err != nil {
		return nil, err
	}
	s.metrics.fetch(name, fetchOK)
	return a, nil
}

func (s *ArtifactStore) materialize(ctx context.Context, name string, version VersionTag) (*Artifact, error) {
	key := artifactKey(name, version)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		s.mu.RLock()
		cachedAgain, ok := s.catalog[key]
		s.mu.RUnlock()
		if ok {
			return cachedAgain, nil
		}

		a := &Artifact{Name: name, Version: version, CreatedAt: s.now()}
		if s.build != nil {
			body, err := s.build(ctx, name, version)
			if err != nil {
				return nil, fmt.Errorf("build artifact %s: %w", key, err)
			}
			a.Body = body
		}

		s.mu.Lock()
		s.catalog[key] = a
		s.mu.Unlock()
		s.logger.Debug("artifact materialized", "key", key)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

func (s *ArtifactStore) latency() time.Duration {
	if s.maxLatency <= s.minLatency {
		return s.minLatency
	}
	return s.minLatency + rand.N(s.maxLatency-s.minLatency)
}
