package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// MetricsHook records command counts, latencies and dial failures.
type MetricsHook struct {
	metrics *metrics.RedisMetrics
}

var _ goredis.Hook = (*MetricsHook)(nil)

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.metrics.ConnectionErrors.Inc()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(cmd.Name(), err, start)
		return err
	}
}

// ProcessPipelineHook tracks a pipeline as a single operation.
func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observe("pipeline", err, start)
		return err
	}
}

func (h *MetricsHook) observe(operation string, err error, start time.Time) {
	status := "success"
	if err != nil && !errors.Is(err, goredis.Nil) {
		status = "error"
	}
	h.metrics.Operations.WithLabelValues(operation, status).Inc()
	h.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
