//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testRedisURL string

func TestMain(m *testing.M) {
	os.Exit(runWithRedis(m))
}

func runWithRedis(m *testing.M) int {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		return 1
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
		}
	}()

	testRedisURL, err = container.ConnectionString(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		return 1
	}
	return m.Run()
}

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	client, err := NewClient(ctx, testRedisURL, metrics.NewRedisMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, client.Underlying().FlushAll(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient_Connects(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestCachedSource_SharedAcrossInstances(t *testing.T) {
	client := setupTestClient(t)
	src := &countingSource{}
	ctx := context.Background()

	newCache := func() (*CachedSource, *metrics.CacheMetrics) {
		m := metrics.NewCacheMetrics(prometheus.NewRegistry())
		return NewCachedSource(src, client.Underlying(), time.Minute, clockwork.NewRealClock(), m), m
	}

	first, _ := newCache()
	items, err := first.Search(ctx, "go", 10)
	require.NoError(t, err)

	// a second instance has a cold memory layer and must be served by Redis
	second, m := newCache()
	again, err := second.Search(ctx, "go", 10)
	require.NoError(t, err)

	assert.Equal(t, items, again)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Hits.WithLabelValues("search")), 0)

	ttl, err := client.Underlying().TTL(ctx, keyPrefix+"search:10:go").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCachedSource_ChannelRoundTrip(t *testing.T) {
	client := setupTestClient(t)
	src := &countingSource{}
	ctx := context.Background()

	warm := NewCachedSource(src, client.Underlying(), time.Minute, clockwork.NewRealClock(),
		metrics.NewCacheMetrics(prometheus.NewRegistry()))
	ch, err := warm.Channel(ctx, "c1")
	require.NoError(t, err)

	cold := NewCachedSource(src, client.Underlying(), time.Minute, clockwork.NewRealClock(),
		metrics.NewCacheMetrics(prometheus.NewRegistry()))
	cached, err := cold.Channel(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, ch, cached)
	assert.Equal(t, int32(1), src.calls.Load())
}
