package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// RestartPolicy bounds how often a crashed worker may be restarted within a
// sliding window.
type RestartPolicy struct {
	MaxRestarts int
	Window      time.Duration
	clock       clockwork.Clock
	restarts    []time.Time
}

// NewRestartPolicy allows maxRestarts restarts in any window-long span.
func NewRestartPolicy(maxRestarts int, window time.Duration, clock clockwork.Clock) *RestartPolicy {
	return &RestartPolicy{MaxRestarts: maxRestarts, Window: window, clock: clock}
}

// Allow records a restart and reports whether it is within budget.
func (p *RestartPolicy) Allow() bool {
	now := p.clock.Now()
	cutoff := now.Add(-p.Window)

	kept := p.restarts[:0]
	for _, t := range p.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.restarts = kept

	if len(p.restarts) >= p.MaxRestarts {
		return false
	}
	p.restarts = append(p.restarts, now)
	return true
}

// Reset gives the worker a fresh budget.
func (p *RestartPolicy) Reset() {
	p.restarts = p.restarts[:0]
}
