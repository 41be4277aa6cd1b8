package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHook() (*CircuitBreakerHook, *metrics.RedisMetrics) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	return NewCircuitBreakerHook(m), m
}

func tripBreaker(t *testing.T, hook *CircuitBreakerHook, n int) {
	t.Helper()
	ctx := context.Background()
	for range n {
		processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("redis down")
		})
		_ = processHook(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.GetState())
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook, _ := newTestHook()
	ctx := context.Background()

	for range 10 {
		processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
			return nil
		})
		assert.NoError(t, processHook(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	counts := hook.GetCounts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(10), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_CacheMissIsSuccess(t *testing.T) {
	hook, _ := newTestHook()
	ctx := context.Background()

	for range 10 {
		processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
			return goredis.Nil
		})
		err := processHook(ctx, goredis.NewStringCmd(ctx, "get", "missing"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.Equal(t, uint32(0), hook.GetCounts().TotalFailures)
}

func TestCircuitBreakerHook_TransientFailures(t *testing.T) {
	hook, _ := newTestHook()
	ctx := context.Background()

	// below the minimum request count
	for range 2 {
		processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("connection refused")
		})
		err := processHook(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
}

func TestCircuitBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	hook, m := newTestHook()
	tripBreaker(t, hook, 5)

	assert.InDelta(t, 2, testutil.ToFloat64(m.BreakerState), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("open")), 0)
}

func TestCircuitBreakerHook_FailsFastWhenOpen(t *testing.T) {
	hook, _ := newTestHook()
	tripBreaker(t, hook, 5)
	ctx := context.Background()

	called := false
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		called = true
		return nil
	})

	cmd := goredis.NewStringCmd(ctx, "get", "key")
	err := processHook(ctx, cmd)

	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState, "rejection must be visible on the command")
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_PipelineFailsWhenOpen(t *testing.T) {
	hook, _ := newTestHook()
	tripBreaker(t, hook, 5)
	ctx := context.Background()

	pipelineHook := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		t.Fatal("Redis pipeline should not be called")
		return nil
	})

	cmds := []goredis.Cmder{
		goredis.NewStringCmd(ctx, "get", "key1"),
		goredis.NewStringCmd(ctx, "get", "key2"),
	}
	err := pipelineHook(ctx, cmds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	for _, cmd := range cmds {
		assert.Error(t, cmd.Err())
	}
}

func TestCircuitBreakerHook_RecoversAfterTimeout(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := newCircuitBreakerHook(m, gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	tripBreaker(t, hook, 3)
	ctx := context.Background()

	time.Sleep(150 * time.Millisecond)

	ok := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error { return nil })
	require.NoError(t, ok(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	assert.Equal(t, gobreaker.StateHalfOpen, hook.GetState())

	require.NoError(t, ok(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.InDelta(t, 0, testutil.ToFloat64(m.BreakerState), 0)
}

func TestStateToFloat(t *testing.T) {
	tests := []struct {
		state    gobreaker.State
		expected float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.InDelta(t, tt.expected, stateToFloat(tt.state), 0)
		})
	}
}

func TestMetricsHook_CountsByStatus(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := &MetricsHook{metrics: m}
	ctx := context.Background()

	results := []error{nil, goredis.Nil, errors.New("boom")}
	for _, res := range results {
		processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
			return res
		})
		_ = processHook(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.Operations.WithLabelValues("get", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Operations.WithLabelValues("get", "error")), 0)
}
