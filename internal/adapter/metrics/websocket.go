package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for WebSocket connections.
type WebSocketMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	Rejected           *prometheus.CounterVec
	MessagesSent       prometheus.Counter
	SendDuration       prometheus.Histogram
	SlowClientsEvicted prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_total",
			Help:      "Total number of rejected WebSocket upgrades, by reason.",
		}, []string{"reason"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total number of WebSocket text messages written.",
		}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_duration_seconds",
			Help:      "Time spent writing a single WebSocket message.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of connections closed because their send buffer was full.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectionsTotal, m.Rejected, m.MessagesSent, m.SendDuration, m.SlowClientsEvicted)
	return m
}
