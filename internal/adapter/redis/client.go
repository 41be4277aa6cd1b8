package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Client wraps a go-redis client with the metrics and circuit breaker hooks.
type Client struct {
	rdb     *goredis.Client
	breaker *CircuitBreakerHook
}

// NewClient creates a client from a URL (e.g. "redis://localhost:6379") and
// verifies the connection.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	breaker := NewCircuitBreakerHook(m)
	rdb.AddHook(&MetricsHook{metrics: m})
	rdb.AddHook(breaker)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{rdb: rdb, breaker: breaker}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw go-redis client.
func (c *Client) Underlying() *goredis.Client {
	return c.rdb
}

func (c *Client) Breaker() *CircuitBreakerHook {
	return c.breaker
}
