package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 15 * time.Second

// countingSource counts calls and can hold them until released.
type countingSource struct {
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	err     error
}

func (s *countingSource) wait(ctx context.Context) error {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *countingSource) Search(ctx context.Context, query string, _ int) ([]domain.Item, error) {
	s.calls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return []domain.Item{{ID: "v-" + query, Title: query}}, nil
}

func (s *countingSource) Channel(ctx context.Context, channelID string) (*domain.Channel, error) {
	s.calls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &domain.Channel{ID: channelID, Title: "Chan", Country: domain.NotAvailable}, nil
}

func (s *countingSource) ChannelItems(ctx context.Context, channelID string, _ int) ([]domain.Item, error) {
	s.calls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return []domain.Item{{ID: "v1", ChannelID: channelID}}, nil
}

// unreachableRedis fails every command immediately.
func unreachableRedis(t *testing.T) *goredis.Client {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestCache(t *testing.T, src domain.ContentSource) (*CachedSource, *clockwork.FakeClock, *metrics.CacheMetrics) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := metrics.NewCacheMetrics(prometheus.NewRegistry())
	return NewCachedSource(src, unreachableRedis(t), testTTL, clock, m), clock, m
}

func TestCachedSource_RedisDownFallsThroughToSource(t *testing.T) {
	src := &countingSource{}
	cache, _, m := newTestCache(t, src)

	items, err := cache.Search(context.Background(), "go", 10)
	require.NoError(t, err)

	assert.Equal(t, []domain.Item{{ID: "v-go", Title: "go"}}, items)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Misses.WithLabelValues("search")), 0)
	// failed GET and failed SET
	assert.InDelta(t, 2, testutil.ToFloat64(m.Errors.WithLabelValues("search")), 0)
}

func TestCachedSource_MemoryLayerServesRepeat(t *testing.T) {
	src := &countingSource{}
	cache, _, m := newTestCache(t, src)
	ctx := context.Background()

	first, err := cache.Channel(ctx, "c1")
	require.NoError(t, err)
	second, err := cache.Channel(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Hits.WithLabelValues("channel")), 0)
}

func TestCachedSource_KeysIncludeCount(t *testing.T) {
	src := &countingSource{}
	cache, _, _ := newTestCache(t, src)
	ctx := context.Background()

	_, err := cache.Search(ctx, "go", domain.SearchBatchSize)
	require.NoError(t, err)
	_, err = cache.Search(ctx, "go", domain.StatsBatchSize)
	require.NoError(t, err)
	_, err = cache.ChannelItems(ctx, "go", domain.SearchBatchSize)
	require.NoError(t, err)

	assert.Equal(t, int32(3), src.calls.Load())
}

func TestCachedSource_EntriesExpire(t *testing.T) {
	src := &countingSource{}
	cache, clock, _ := newTestCache(t, src)
	ctx := context.Background()

	_, err := cache.Search(ctx, "go", 10)
	require.NoError(t, err)

	clock.Advance(testTTL - time.Second)
	_, err = cache.Search(ctx, "go", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load(), "should still hit before TTL")

	clock.Advance(2 * time.Second)
	_, err = cache.Search(ctx, "go", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "should reload after TTL")
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("upstream down")
	src := &countingSource{err: boom}
	cache, _, _ := newTestCache(t, src)
	ctx := context.Background()

	_, err := cache.Search(ctx, "go", 10)
	require.ErrorIs(t, err, boom)

	src.err = nil
	items, err := cache.Search(ctx, "go", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedSource_CollapsesConcurrentMisses(t *testing.T) {
	src := &countingSource{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	cache, _, m := newTestCache(t, src)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan []domain.Item, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		items, err := cache.Search(ctx, "go", 10)
		assert.NoError(t, err)
		results <- items
	}()
	<-src.started

	for range callers - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := cache.Search(ctx, "go", 10)
			assert.NoError(t, err)
			results <- items
		}()
	}

	// let the followers join the in-flight load
	time.Sleep(100 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(results)

	for items := range results {
		assert.Equal(t, "v-go", items[0].ID)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.InDelta(t, callers, testutil.ToFloat64(m.Collapsed), 0)
}

func TestCachedSource_CallerCancellation(t *testing.T) {
	src := &countingSource{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	cache, _, _ := newTestCache(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Search(ctx, "go", 10)
		errCh <- err
	}()

	<-src.started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}
	close(src.gate)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newMemoryCache(10*time.Second, clock)

	cache.set("k", []byte("v"))
	_, hit := cache.get("k")
	assert.True(t, hit, "Should hit immediately after set")

	clock.Advance(9 * time.Second)
	_, hit = cache.get("k")
	assert.True(t, hit, "Should still hit at 9 seconds")

	clock.Advance(2 * time.Second)
	_, hit = cache.get("k")
	assert.False(t, hit, "Should miss after TTL expires")
}

func TestMemoryCache_EvictExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newMemoryCache(10*time.Second, clock)

	cache.set("k1", []byte("1"))
	clock.Advance(5 * time.Second)
	cache.set("k2", []byte("2"))
	clock.Advance(6 * time.Second)

	assert.Equal(t, 1, cache.evictExpired())
	assert.Equal(t, 1, cache.size())
	_, hit := cache.get("k2")
	assert.True(t, hit)
}

func TestMemoryCache_EvictionTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newMemoryCache(time.Second, clock)
	cache.set("k", []byte("v"))

	stop := cache.startEviction(5 * time.Second)
	defer stop()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool { return cache.size() == 0 }, time.Second, 10*time.Millisecond)
}
