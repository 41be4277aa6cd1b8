package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs periodic jobs on the given clock.
type Scheduler struct {
	clock clockwork.Clock
}

// NewScheduler creates a scheduler driven by clock.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Every calls fn immediately and then once per interval on a dedicated
// goroutine, until fn returns false or the schedule is cancelled.
func (s *Scheduler) Every(interval time.Duration, fn func() bool) *Schedule {
	sch := &Schedule{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := s.clock.NewTicker(interval)

	go func() {
		defer close(sch.done)
		defer ticker.Stop()

		if sch.cancelled() || !fn() {
			return
		}
		for {
			select {
			case <-sch.stop:
				return
			case <-ticker.Chan():
				if sch.cancelled() || !fn() {
					return
				}
			}
		}
	}()
	return sch
}

// Schedule is a handle on a running periodic job.
type Schedule struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Cancel prevents further runs. A run already in progress is not interrupted.
func (s *Schedule) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the schedule goroutine has exited.
func (s *Schedule) Done() <-chan struct{} {
	return s.done
}

func (s *Schedule) cancelled() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
