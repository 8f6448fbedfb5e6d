package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the process-wide Prometheus instruments. One instance is
// created at startup and shared by the hub, sessions, and the security log.
type Metrics struct {
	SessionsActive  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SamplesTotal    prometheus.Counter
	SampleErrors    prometheus.Counter
	EmissionGrams   prometheus.Counter
	SecurityEvents  *prometheus.CounterVec
	SampleDuration  prometheus.Histogram
}

// New creates and registers the instrument set on reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenpulse_sessions_active",
			Help: "Observer sessions currently connected.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenpulse_sessions_started_total",
			Help: "Sampling loops started since process start.",
		}),
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenpulse_samples_total",
			Help: "Successful measurement cycles across all sessions.",
		}),
		SampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenpulse_sample_errors_total",
			Help: "Measurement cycles that failed and were skipped.",
		}),
		EmissionGrams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenpulse_emission_grams_total",
			Help: "CO2e grams accumulated across all sessions.",
		}),
		SecurityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenpulse_security_events_total",
			Help: "Security events logged, by severity.",
		}, []string{"severity"}),
		SampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenpulse_sample_duration_seconds",
			Help:    "Wall time of one full measurement window.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
	}

	reg.MustRegister(
		m.SessionsActive,
		m.SessionsStarted,
		m.SamplesTotal,
		m.SampleErrors,
		m.EmissionGrams,
		m.SecurityEvents,
		m.SampleDuration,
	)
	return m
}
