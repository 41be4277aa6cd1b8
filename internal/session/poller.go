package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/tubepulse/internal/domain"
)

// poller fetches the latest items for one query on a schedule and forwards
// only ids it has not seen before. Its seen set is independent of the
// coordinator's delivered set and lives as long as the poller.
type poller struct {
	ctx        context.Context
	generation uint64
	query      string
	source     domain.ContentSource
	post       func(message) bool
	seen       map[string]struct{}
	schedule   *Schedule
}

func startPoller(ctx context.Context, scheduler *Scheduler, interval time.Duration, generation uint64, query string, source domain.ContentSource, post func(message) bool) *poller {
	p := &poller{
		ctx:        ctx,
		generation: generation,
		query:      query,
		source:     source,
		post:       post,
		seen:       make(map[string]struct{}),
	}
	p.schedule = scheduler.Every(interval, p.tick)
	return p
}

// stop cancels future ticks. An in-flight fetch still completes and its
// batch is discarded by generation.
func (p *poller) stop() {
	p.schedule.Cancel()
}

func (p *poller) tick() (keepRunning bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(p.ctx, "Poller panic recovered", "generation", p.generation, "panic", r)
			p.post(workerCrashMsg{
				worker:     workerPoller,
				generation: p.generation,
				err:        fmt.Errorf("%w: poller: %v", domain.ErrWorkerPanic, r),
			})
			keepRunning = false
		}
	}()

	items, err := p.source.Search(p.ctx, p.query, domain.SearchBatchSize)
	if err != nil {
		if p.ctx.Err() != nil {
			return false
		}
		p.post(workerFailureMsg{worker: workerPoller, generation: p.generation, err: err})
		return true
	}

	var fresh []domain.Item
	for _, item := range items {
		if _, dup := p.seen[item.ID]; dup {
			continue
		}
		p.seen[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}

	slog.DebugContext(p.ctx, "Poll completed", "generation", p.generation, "fetched", len(items), "new", len(fresh))
	if len(fresh) > 0 {
		p.post(itemsBatchMsg{generation: p.generation, items: fresh})
	}
	return true
}
