package metrics

import "github.com/prometheus/client_golang/prometheus"

// SourceMetrics holds Prometheus metrics for content source calls.
type SourceMetrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	KeyRotations prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewSourceMetrics creates and registers content source metrics on the given registry.
func NewSourceMetrics(reg prometheus.Registerer) *SourceMetrics {
	m := &SourceMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Total number of content source calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Duration of content source calls in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),
		KeyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "key_rotations_total",
			Help:      "Total number of API key rotations after a failed call.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Requests, m.Duration, m.KeyRotations, m.BreakerState)
	return m
}
