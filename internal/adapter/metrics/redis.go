package metrics

import "github.com/prometheus/client_golang/prometheus"

// RedisMetrics holds Prometheus metrics for the Redis client hooks.
type RedisMetrics struct {
	Operations         *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ConnectionErrors   prometheus.Counter
	BreakerState       prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec
}

// NewRedisMetrics creates and registers Redis metrics on the given registry.
func NewRedisMetrics(reg prometheus.Registerer) *RedisMetrics {
	m := &RedisMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Total number of Redis commands, by command and status.",
		}, []string{"operation", "status"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis commands in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"operation"}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "connection_errors_total",
			Help:      "Total number of failed Redis dials.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state changes, by target state.",
		}, []string{"to"}),
	}

	reg.MustRegister(m.Operations, m.OperationDuration, m.ConnectionErrors, m.BreakerState, m.BreakerTransitions)
	return m
}
