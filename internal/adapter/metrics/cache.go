package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the content response cache.
type CacheMetrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Errors    *prometheus.CounterVec
	Collapsed prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits, by operation.",
		}, []string{"operation"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses, by operation.",
		}, []string{"operation"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of cache store errors, by operation.",
		}, []string{"operation"}),
		Collapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "collapsed_requests_total",
			Help:      "Total number of source calls shared with a concurrent caller.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Errors, m.Collapsed)
	return m
}
