package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/tubepulse/internal/domain"
)

const mailboxSize = 64

var (
	ErrWorkerStopped = errors.New("sentiment worker stopped")
	ErrWorkerBusy    = errors.New("sentiment worker mailbox full")
)

// Scorer computes the aggregate label of a batch.
type Scorer interface {
	Aggregate(items []domain.Item) domain.Sentiment
}

// Result is the reply to one Analyze request.
type Result struct {
	RequestID uuid.UUID
	Label     domain.Sentiment
}

// PanicError reports the request whose scoring panicked. It matches
// domain.ErrWorkerPanic.
type PanicError struct {
	RequestID uuid.UUID
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: sentiment request %s: %v", domain.ErrWorkerPanic, e.RequestID, e.Value)
}

func (e *PanicError) Unwrap() error { return domain.ErrWorkerPanic }

type request struct {
	id    uuid.UUID
	items []domain.Item
}

// Worker serializes scoring requests on a single goroutine. Replies are
// handed to reply in request order. A panic while scoring ends the worker
// and is reported through crash as a *PanicError; requests still queued are
// lost with it, and the owner decides what to resubmit to a new worker.
type Worker struct {
	ctx      context.Context
	scorer   Scorer
	reply    func(Result)
	crash    func(error)
	mailbox  chan request
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartWorker runs a worker until Stop is called. ctx only scopes logging.
func StartWorker(ctx context.Context, scorer Scorer, reply func(Result), crash func(error)) *Worker {
	w := &Worker{
		ctx:     ctx,
		scorer:  scorer,
		reply:   reply,
		crash:   crash,
		mailbox: make(chan request, mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Analyze enqueues a batch without blocking. It fails once the worker has
// stopped or crashed, or when the mailbox is full.
func (w *Worker) Analyze(requestID uuid.UUID, items []domain.Item) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}

	select {
	case w.mailbox <- request{id: requestID, items: items}:
		return nil
	default:
		return ErrWorkerBusy
	}
}

// Stop ends the worker. Queued requests are dropped.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	var current uuid.UUID

	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(w.ctx, "Sentiment worker panic recovered", "request_id", current.String(), "panic", r)
			if w.crash != nil {
				w.crash(&PanicError{RequestID: current, Value: r})
			}
		}
	}()

	for {
		select {
		case <-w.quit:
			return
		case req := <-w.mailbox:
			current = req.id
			label := w.scorer.Aggregate(req.items)
			slog.DebugContext(w.ctx, "Batch scored", "request_id", req.id.String(), "items", len(req.items), "label", label.String())
			w.reply(Result{RequestID: req.id, Label: label})
		}
	}
}
