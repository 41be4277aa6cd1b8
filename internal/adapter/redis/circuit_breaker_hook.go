package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// CircuitBreakerHook fails Redis commands fast while Redis is unhealthy.
// Rejected commands carry the breaker error on the command itself, so
// callers reading cmd.Err() see it.
type CircuitBreakerHook struct {
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.RedisMetrics
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips at a 60% failure rate over at least 5 requests
// in a 10s window, and probes again after 30s.
func NewCircuitBreakerHook(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(m, gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}

func newCircuitBreakerHook(m *metrics.RedisMetrics, settings gobreaker.Settings) *CircuitBreakerHook {
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, goredis.Nil)
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed",
			"component", name,
			"from", from.String(),
			"to", to.String(),
		)
		m.BreakerTransitions.WithLabelValues(to.String()).Inc()
		m.BreakerState.Set(stateToFloat(to))
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings), metrics: m}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		var cmdErr error
		_, err := h.cb.Execute(func() (any, error) {
			cmdErr = next(ctx, cmd)
			return nil, cmdErr
		})
		if cmdErr != nil {
			return cmdErr
		}
		if err != nil {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		var pipeErr error
		_, err := h.cb.Execute(func() (any, error) {
			pipeErr = next(ctx, cmds)
			return nil, pipeErr
		})
		if pipeErr != nil {
			return fmt.Errorf("circuit breaker pipeline failed: %w", pipeErr)
		}
		if err != nil {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		return nil
	}
}

// GetState returns the current breaker state.
func (h *CircuitBreakerHook) GetState() gobreaker.State {
	return h.cb.State()
}

// GetCounts returns the counts of the current generation.
func (h *CircuitBreakerHook) GetCounts() gobreaker.Counts {
	return h.cb.Counts()
}
