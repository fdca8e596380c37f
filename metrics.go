package lazyloading

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"

	fetchOK    = "ok"
	fetchStale = "stale"
)

// Metrics holds the Prometheus collectors for loaders and artifact stores.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	Reloads         *prometheus.CounterVec
	Terminal        *prometheus.CounterVec
	Fetches         *prometheus.CounterVec
	Deploys         prometheus.Counter
	DeployedVersion prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyload",
			Name:      "import_attempts_total",
			Help:      "Import invocations by import id and outcome.",
		}, []string{"id", "outcome"}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyload",
			Name:      "reloads_total",
			Help:      "Environment reloads requested after exhausted retries.",
		}, []string{"id"}),
		Terminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyload",
			Name:      "terminal_failures_total",
			Help:      "Failures propagated to the caller after both budgets were spent.",
		}, []string{"id"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyload",
			Name:      "artifact_fetches_total",
			Help:      "Artifact fetches by name and result.",
		}, []string{"name", "result"}),
		Deploys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lazyload",
			Name:      "deploys_total",
			Help:      "Simulated deployments.",
		}),
		DeployedVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazyload",
			Name:      "deployed_version",
			Help:      "Currently deployed version tag.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Reloads, m.Terminal, m.Fetches, m.Deploys, m.DeployedVersion)
	}
	return m
}

func (m *Metrics) attempt(id, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(id, outcome).Inc()
}

func (m *Metrics) reload(id string) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(id).Inc()
}

func (m *Metrics) terminal(id string) {
	if m == nil {
		return
	}
	m.Terminal.WithLabelValues(id).Inc()
}

func (m *Metrics) fetch(name, result string) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(name, result).Inc()
}

func (m *Metrics) deployed(v VersionTag) {
	if m == nil {
		return
	}
	m.Deploys.Inc()
	m.DeployedVersion.Set(float64(v))
}
