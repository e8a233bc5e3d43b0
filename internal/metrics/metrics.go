// Package metrics exposes Prometheus counters for narration jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for provider calls.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors recorded by the orchestrator. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	jobs          *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	jobDuration   prometheus.Histogram
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echojam",
			Name:      "jobs_total",
			Help:      "Narration jobs by terminal status.",
		}, []string{"status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echojam",
			Name:      "job_warnings_total",
			Help:      "Per-stop warnings by phase.",
		}, []string{"phase"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echojam",
			Name:      "provider_calls_total",
			Help:      "External provider calls by capability, provider and outcome.",
		}, []string{"capability", "provider", "outcome"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "echojam",
			Name:      "job_duration_seconds",
			Help:      "Wall time of narration job runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
	m.registry.MustRegister(m.jobs, m.warnings, m.providerCalls, m.jobDuration)
	return m
}

// JobFinished records a job reaching status after d.
func (m *Metrics) JobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	m.jobDuration.Observe(d.Seconds())
}

// Warning records one per-stop warning in phase.
func (m *Metrics) Warning(phase string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(phase).Inc()
}

// ProviderCall records one external call. err decides the outcome label.
func (m *Metrics) ProviderCall(capability, provider string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.providerCalls.WithLabelValues(capability, provider, outcome).Inc()
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
