package httpserver

import (
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry = 5 * time.Minute

	rejectRate   = "rate_limit"
	rejectGlobal = "global_limit"
)

// newRateLimiter limits new connections per client IP with a token bucket.
func newRateLimiter(ratePerSecond float64, burst int, m *metrics.WebSocketMetrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if m != nil {
				m.Rejected.WithLabelValues(rejectRate).Inc()
			}
			return HandleError(c, apperrors.RateLimitedError("too many connection attempts"))
		},
	})
}

// connectionSlots caps concurrent sessions on this instance.
type connectionSlots struct {
	inUse atomic.Int64
	max   int64
}

func newConnectionSlots(max int64) *connectionSlots {
	return &connectionSlots{max: max}
}

// acquire takes a slot if one is free.
func (s *connectionSlots) acquire() bool {
	for {
		n := s.inUse.Load()
		if n >= s.max {
			return false
		}
		if s.inUse.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *connectionSlots) release() {
	s.inUse.Add(-1)
}

func (s *connectionSlots) current() int64 {
	return s.inUse.Load()
}
