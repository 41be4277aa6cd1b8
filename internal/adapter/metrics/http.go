package metrics

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

// HTTPMetrics counts requests per registered route.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status class.",
		}, []string{"route", "method", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of short-lived HTTP requests.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served, including open WebSocket upgrades.",
		}),
	}

	reg.MustRegister(m.Requests, m.Latency, m.InFlight)
	return m
}

// Middleware records every request except scrapes of /metrics. Requests
// without a matching route share one label. /ws is counted but not timed:
// its handler runs for the whole session.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "/metrics" {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			var timer *prometheus.Timer
			if route != "/ws" {
				timer = prometheus.NewTimer(m.Latency.WithLabelValues(route))
			}

			err := next(c)
			if timer != nil {
				timer.ObserveDuration()
			}

			status := c.Response().Status
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			}
			m.Requests.WithLabelValues(route, c.Request().Method, statusClass(status)).Inc()
			return err
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", code/100)
}
