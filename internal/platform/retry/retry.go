// Package retry runs an operation repeatedly with classified errors and
// exponential backoff. The attempt number is handed to the operation so
// callers can vary what they try, e.g. rotate credentials.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
	After               // rate-limited, use longer backoff
)

type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	OnRetry          func(attempt int, err error, backoff time.Duration)
	Clock            clockwork.Clock
}

type Classify func(err error) Action

// Operation receives the 1-based attempt number.
type Operation[T any] func(attempt int) (T, error)

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}

	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op(attempt)
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		wait := backoff
		if action == After {
			wait = p.RateLimitBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		if wait > 0 {
			select {
			case <-clock.After(wait):
			case <-ctx.Done():
				return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		} else if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
		backoff *= 2
	}
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
