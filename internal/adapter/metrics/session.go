package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for search session coordinators.
type SessionMetrics struct {
	ActiveSessions     prometheus.Gauge
	Searches           prometheus.Counter
	ItemsDelivered     prometheus.Counter
	FramesEmitted      *prometheus.CounterVec
	WorkerFailures     *prometheus.CounterVec
	WorkerRestarts     *prometheus.CounterVec
	WorkersDown        *prometheus.CounterVec
	LateRepliesDropped *prometheus.CounterVec
	CoordinatorPanics  prometheus.Counter
	SentimentLatency   prometheus.Histogram
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of running session coordinators.",
		}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "searches_total",
			Help:      "Total number of accepted search commands.",
		}),
		ItemsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "items_delivered_total",
			Help:      "Total number of new items pushed to clients.",
		}),
		FramesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_emitted_total",
			Help:      "Total number of outbound frames, by frame type.",
		}, []string{"type"}),
		WorkerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "worker_failures_total",
			Help:      "Total number of reported worker failures, by worker.",
		}, []string{"worker"}),
		WorkerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "worker_restarts_total",
			Help:      "Total number of supervised worker restarts, by worker.",
		}, []string{"worker"}),
		WorkersDown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "workers_down_total",
			Help:      "Total number of workers that exhausted their restart budget, by worker.",
		}, []string{"worker"}),
		LateRepliesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "late_replies_dropped_total",
			Help:      "Total number of worker replies dropped as stale, by kind.",
		}, []string{"kind"}),
		CoordinatorPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "coordinator_panics_total",
			Help:      "Total number of sessions terminated by a coordinator panic.",
		}),
		SentimentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sentiment_join_seconds",
			Help:      "Time from batch arrival to sentiment join.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	reg.MustRegister(
		m.ActiveSessions, m.Searches, m.ItemsDelivered, m.FramesEmitted,
		m.WorkerFailures, m.WorkerRestarts, m.WorkersDown, m.LateRepliesDropped,
		m.CoordinatorPanics, m.SentimentLatency,
	)
	return m
}
