package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/domain"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
	"github.com/pscheid92/tubepulse/internal/platform/retry"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	breakerFailureThreshold = 5
	breakerDelay            = 30 * time.Second
	defaultRequestTimeout   = 10 * time.Second
)

// errAttemptTimeout marks an attempt that ran out of its own time budget while
// the caller was still waiting. It counts as a transport failure.
var errAttemptTimeout = errors.New("youtube request timed out")

type Config struct {
	Keys              []string
	Endpoint          string // empty means the public API
	RequestsPerSecond float64
	Burst             int
	RequestTimeout    time.Duration // per attempt; zero means 10s
}

// Client is a domain.ContentSource backed by the YouTube Data API.
type Client struct {
	keys    *KeyRing
	limiter *rate.Limiter
	breaker circuitbreaker.CircuitBreaker[any]
	metrics *metrics.SourceMetrics
	clock   clockwork.Clock
	timeout time.Duration
}

var _ domain.ContentSource = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, m *metrics.SourceMetrics, clock clockwork.Clock) (*Client, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	keys, err := NewKeyRing(ctx, cfg.Keys, opts...)
	if err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	burst := max(cfg.Burst, 1)
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailureThreshold).
		WithDelay(breakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "youtube",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			m.BreakerState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Client{
		keys:    keys,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
		metrics: m,
		clock:   clock,
		timeout: timeout,
	}, nil
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// BreakerState is exposed for readiness checks and tests.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Search returns the newest videos matching query.
func (c *Client) Search(ctx context.Context, query string, count int) ([]domain.Item, error) {
	return call(ctx, c, "search", func(ctx context.Context, svc *yt.Service) ([]domain.Item, error) {
		resp, err := svc.Search.List([]string{"snippet"}).
			Q(query).
			MaxResults(int64(count)).
			Order("date").
			Type("video").
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}
		return searchItems(ctx, resp.Items), nil
	})
}

// Channel returns detail and statistics for one channel.
func (c *Client) Channel(ctx context.Context, channelID string) (*domain.Channel, error) {
	return call(ctx, c, "channel", func(ctx context.Context, svc *yt.Service) (*domain.Channel, error) {
		resp, err := svc.Channels.List([]string{"snippet", "statistics"}).
			Id(channelID).
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
		}
		return toChannel(resp.Items[0])
	})
}

// ChannelItems returns the newest videos uploaded by a channel.
func (c *Client) ChannelItems(ctx context.Context, channelID string, count int) ([]domain.Item, error) {
	return call(ctx, c, "channel_items", func(ctx context.Context, svc *yt.Service) ([]domain.Item, error) {
		resp, err := svc.Search.List([]string{"snippet"}).
			ChannelId(channelID).
			MaxResults(int64(count)).
			Order("date").
			Type("video").
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}
		return searchItems(ctx, resp.Items), nil
	})
}

// call paces, guards and retries fn. Each attempt uses the next key in the
// ring, so a call tries every key at most once, and gets its own deadline.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context, *yt.Service) (T, error)) (T, error) {
	var zero T
	start := c.clock.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		c.observe(op, "cancelled", start)
		return zero, apperrors.ExternalError(op+": rate limiter wait aborted",
			fmt.Errorf("%w: %w", domain.ErrFetchFailed, err))
	}

	if !c.breaker.TryAcquirePermit() {
		c.observe(op, "rejected", start)
		return zero, apperrors.ExternalError(op+": content source unavailable",
			fmt.Errorf("%w: %w", domain.ErrFetchFailed, circuitbreaker.ErrOpen))
	}

	n := c.keys.Len()
	first := c.keys.Current()
	policy := retry.Policy{
		MaxAttempts: n,
		Clock:       c.clock,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			slog.WarnContext(ctx, "Content source call failed, trying next key",
				"operation", op, "attempt", attempt, "error", err)
		},
	}

	val, err := retry.Do(ctx, policy, classify, func(attempt int) (T, error) {
		idx := (first + attempt - 1) % n
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		v, err := fn(attemptCtx, c.keys.at(idx))
		cancel()
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", errAttemptTimeout, c.timeout)
		}
		if err != nil && rotatable(err) && c.keys.advance(idx) {
			c.metrics.KeyRotations.Inc()
		}
		return v, err
	})

	switch {
	case err == nil:
		c.breaker.RecordSuccess()
		c.observe(op, "success", start)
		return val, nil
	case sourceFailure(err):
		c.breaker.RecordError(err)
	default:
		// the API answered; the request itself was unusable
		c.breaker.RecordSuccess()
	}

	outcome := "error"
	if isNotFound(err) {
		outcome = "not_found"
	} else if errors.Is(err, context.Canceled) {
		outcome = "cancelled"
	} else if errors.Is(err, errAttemptTimeout) {
		outcome = "timeout"
	}
	c.observe(op, outcome, start)
	return zero, mapError(op, err)
}

func (c *Client) observe(op, outcome string, start time.Time) {
	c.metrics.Requests.WithLabelValues(op, outcome).Inc()
	c.metrics.Duration.WithLabelValues(op).Observe(c.clock.Since(start).Seconds())
}
