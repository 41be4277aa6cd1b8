package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "tubepulse:cache:"

	// loadTimeout bounds a collapsed source call, which outlives the caller
	// that started it.
	loadTimeout = 30 * time.Second
)

// CachedSource is a read-through cache in front of a content source.
type CachedSource struct {
	next    domain.ContentSource
	rdb     goredis.Cmdable
	mem     *memoryCache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.CacheMetrics
}

var _ domain.ContentSource = (*CachedSource)(nil)

func NewCachedSource(next domain.ContentSource, rdb goredis.Cmdable, ttl time.Duration, clock clockwork.Clock, m *metrics.CacheMetrics) *CachedSource {
	return &CachedSource{
		next:    next,
		rdb:     rdb,
		mem:     newMemoryCache(ttl, clock),
		ttl:     ttl,
		metrics: m,
	}
}

// StartEvictionTimer periodically drops expired in-process entries.
// Returns a stop function that should be deferred.
func (s *CachedSource) StartEvictionTimer(interval time.Duration) func() {
	return s.mem.startEviction(interval)
}

func (s *CachedSource) Search(ctx context.Context, query string, count int) ([]domain.Item, error) {
	key := fmt.Sprintf("%ssearch:%d:%s", keyPrefix, count, query)
	return cached(ctx, s, "search", key, func(ctx context.Context) ([]domain.Item, error) {
		return s.next.Search(ctx, query, count)
	})
}

func (s *CachedSource) Channel(ctx context.Context, channelID string) (*domain.Channel, error) {
	key := keyPrefix + "channel:" + channelID
	return cached(ctx, s, "channel", key, func(ctx context.Context) (*domain.Channel, error) {
		return s.next.Channel(ctx, channelID)
	})
}

func (s *CachedSource) ChannelItems(ctx context.Context, channelID string, count int) ([]domain.Item, error) {
	key := fmt.Sprintf("%schannel_items:%d:%s", keyPrefix, count, channelID)
	return cached(ctx, s, "channel_items", key, func(ctx context.Context) ([]domain.Item, error) {
		return s.next.ChannelItems(ctx, channelID, count)
	})
}

// cached looks key up in memory, then Redis, then loads it from the source.
// Concurrent loads of one key share a single source call. Failed loads are
// not cached.
func cached[T any](ctx context.Context, s *CachedSource, op, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := lookup[T](ctx, s, op, key); ok {
		s.metrics.Hits.WithLabelValues(op).Inc()
		return v, nil
	}
	s.metrics.Misses.WithLabelValues(op).Inc()

	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.store(loadCtx, op, key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.Collapsed.Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func lookup[T any](ctx context.Context, s *CachedSource, op, key string) (T, bool) {
	var v T

	if data, ok := s.mem.get(key); ok {
		if err := json.Unmarshal(data, &v); err == nil {
			return v, true
		}
	}

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.metrics.Errors.WithLabelValues(op).Inc()
			slog.WarnContext(ctx, "Redis cache GET failed", "operation", op, "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached response", "operation", op, "error", err)
		return v, false
	}

	s.mem.set(key, data)
	return v, true
}

func (s *CachedSource) store(ctx context.Context, op, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal response for cache", "operation", op, "error", err)
		return
	}

	s.mem.set(key, data)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.metrics.Errors.WithLabelValues(op).Inc()
		slog.WarnContext(ctx, "Failed to populate Redis cache", "operation", op, "error", err)
	}
}
