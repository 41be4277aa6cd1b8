package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/platform/correlation"
	"github.com/pscheid92/tubepulse/internal/sentiment"
)

const (
	mailboxSize    = 64
	commandTimeout = 5 * time.Second
)

var errSessionClosed = errors.New("session closed")

// Config holds the timing and supervision knobs of one session.
type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	HistorySize       int
	MaxRestarts       int
	RestartWindow     time.Duration
}

// DefaultConfig polls every 20s, pings every 30s and allows 100 worker
// restarts per 10 minutes.
func DefaultConfig() Config {
	return Config{
		PollInterval:      20 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HistorySize:       defaultHistorySize,
		MaxRestarts:       100,
		RestartWindow:     10 * time.Minute,
	}
}

// State is whether a search is active.
type State int

const (
	StateIdle State = iota
	StateSearching
)

func (s State) String() string {
	if s == StateSearching {
		return "searching"
	}
	return "idle"
}

// Snapshot is a point-in-time copy of coordinator state.
type Snapshot struct {
	State         State
	Query         string
	Delivered     int
	History       []QueryResult
	PollerDown    bool
	SentimentDown bool
}

// Coordinator owns one client session. All fields below mailbox are touched
// only by the run goroutine.
type Coordinator struct {
	id        uuid.UUID
	cfg       Config
	clock     clockwork.Clock
	source    domain.ContentSource
	scorer    sentiment.Scorer
	outbox    Outbox
	metrics   *metrics.SessionMetrics
	scheduler *Scheduler

	ctx     context.Context
	cancel  context.CancelFunc
	mailbox chan message
	done    chan struct{}

	state           State
	query           string
	generation      uint64
	poller          *poller
	pollerDown      bool
	pollerPolicy    *RestartPolicy
	delivered       map[string]struct{}
	history         *History
	sentiment       *sentiment.Worker
	queued          map[uuid.UUID]struct{}
	sentimentGen    uint64
	sentimentDown   bool
	sentimentPolicy *RestartPolicy
}

// NewCoordinator creates a coordinator for session id. Frames are written to
// outbox; m must not be nil.
func NewCoordinator(id uuid.UUID, cfg Config, source domain.ContentSource, scorer sentiment.Scorer, outbox Outbox, clock clockwork.Clock, m *metrics.SessionMetrics) *Coordinator {
	return &Coordinator{
		id:              id,
		cfg:             cfg,
		clock:           clock,
		source:          source,
		scorer:          scorer,
		outbox:          outbox,
		metrics:         m,
		scheduler:       NewScheduler(clock),
		mailbox:         make(chan message, mailboxSize),
		done:            make(chan struct{}),
		delivered:       make(map[string]struct{}),
		queued:          make(map[uuid.UUID]struct{}),
		history:         NewHistory(cfg.HistorySize),
		pollerPolicy:    NewRestartPolicy(cfg.MaxRestarts, cfg.RestartWindow, clock),
		sentimentPolicy: NewRestartPolicy(cfg.MaxRestarts, cfg.RestartWindow, clock),
	}
}

// Start launches the session goroutine. Cancelling parent ends the session.
func (c *Coordinator) Start(parent context.Context) {
	ctx := correlation.WithID(parent, correlation.ForSession(c.id))
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.startSentiment()
	c.metrics.ActiveSessions.Inc()
	slog.InfoContext(c.ctx, "Session started", "session_id", c.id.String())
	go c.run()
}

func (c *Coordinator) ID() uuid.UUID { return c.id }

// HandleFrame decodes a client frame and queues it. It reports false once the
// session has ended.
func (c *Coordinator) HandleFrame(raw []byte) bool {
	return c.post(decodeCommand(raw))
}

// Close ends the session. It does not wait; use Done.
func (c *Coordinator) Close() {
	c.cancel()
}

// Done is closed after the session goroutine has torn everything down.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// inspect returns a copy of the session state, read on the session goroutine.
func (c *Coordinator) inspect() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !c.post(snapshotMsg{reply: reply}) {
		return Snapshot{}, errSessionClosed
	}

	timer := c.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return Snapshot{}, errSessionClosed
	case <-timer.Chan():
		return Snapshot{}, fmt.Errorf("snapshot timed out after %v", commandTimeout)
	}
}

// post delivers msg unless the session is over.
func (c *Coordinator) post(msg message) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.mailbox <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer c.teardown()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(c.ctx, "Coordinator panic recovered, closing session", "panic", r)
			c.metrics.CoordinatorPanics.Inc()
		}
	}()

	heartbeat := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-heartbeat.Chan():
			c.emit(newPingFrame())
		case msg := <-c.mailbox:
			c.handle(msg)
		}
	}
}

func (c *Coordinator) handle(msg message) {
	switch m := msg.(type) {
	case searchMsg:
		c.handleSearch(m)
	case profileMsg:
		c.handleProfile(m)
	case statsMsg:
		c.handleStats(m)
	case pongMsg:
		slog.DebugContext(c.ctx, "Pong received")
	case rejectMsg:
		slog.DebugContext(c.ctx, "Rejected client frame", "request", m.request, "reason", m.reason)
		c.emit(newErrorFrame(m.request, m.reason))
	case itemsBatchMsg:
		c.handleItemsBatch(m)
	case sentimentResultMsg:
		c.handleSentimentResult(m)
	case profileResultMsg:
		c.emit(newChannelProfileFrame(m.profile))
	case statsResultMsg:
		c.emit(newWordStatsFrame(m.query, m.table))
	case workerFailureMsg:
		c.handleWorkerFailure(m)
	case workerCrashMsg:
		c.handleWorkerCrash(m)
	case snapshotMsg:
		m.reply <- c.currentSnapshot()
	default:
		slog.WarnContext(c.ctx, "Coordinator received unknown message type", "message_type", fmt.Sprintf("%T", msg))
	}
}

func (c *Coordinator) handleSearch(m searchMsg) {
	query := strings.TrimSpace(m.query)
	if query == "" {
		c.emit(newErrorFrame(frameSearch, domain.ErrEmptyQuery.Error()))
		return
	}

	c.stopPoller()
	clear(c.delivered)
	c.query = query

	if c.sentimentDown {
		c.sentimentPolicy.Reset()
		c.startSentiment()
		slog.InfoContext(c.ctx, "Sentiment worker recreated by search")
	}
	c.pollerPolicy.Reset()
	c.startPoller()
	c.state = StateSearching
	c.metrics.Searches.Inc()

	slog.InfoContext(c.ctx, "Search started", "query", query, "generation", c.generation)
}

func (c *Coordinator) handleProfile(m profileMsg) {
	if strings.TrimSpace(m.channelID) == "" {
		c.emit(newErrorFrame(frameChannelProfile, "channel id must not be empty"))
		return
	}
	go runProfile(c.ctx, c.source, m.channelID, c.post)
}

func (c *Coordinator) handleStats(m statsMsg) {
	query := strings.TrimSpace(m.query)
	if query == "" {
		c.emit(newErrorFrame(frameWordStats, domain.ErrEmptyQuery.Error()))
		return
	}
	go runStats(c.ctx, c.source, query, c.post)
}

func (c *Coordinator) handleItemsBatch(m itemsBatchMsg) {
	if c.poller == nil || m.generation != c.generation {
		slog.DebugContext(c.ctx, "Dropping batch from stale poller", "generation", m.generation, "current", c.generation)
		c.metrics.LateRepliesDropped.WithLabelValues(string(workerPoller)).Inc()
		return
	}

	var fresh []domain.Item
	for _, item := range m.items {
		if _, dup := c.delivered[item.ID]; dup {
			continue
		}
		c.delivered[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return
	}

	entry := QueryResult{
		ID:        uuid.New(),
		Query:     c.query,
		Items:     fresh,
		CreatedAt: c.clock.Now(),
	}
	if evicted, ok := c.history.Append(entry); ok {
		delete(c.queued, evicted.ID)
		slog.DebugContext(c.ctx, "History entry evicted", "request_id", evicted.ID.String(), "pending", evicted.Pending())
	}

	if c.sentimentDown {
		slog.WarnContext(c.ctx, "Sentiment worker down, result stays pending", "request_id", entry.ID.String())
	} else {
		c.dispatchPending()
	}

	for _, item := range fresh {
		c.emit(newVideoFrame(item))
	}
	c.metrics.ItemsDelivered.Add(float64(len(fresh)))
}

func (c *Coordinator) handleSentimentResult(m sentimentResultMsg) {
	delete(c.queued, m.result.RequestID)
	defer c.dispatchPending()

	entry, ok := c.history.Complete(m.result.RequestID, m.result.Label)
	if !ok {
		slog.DebugContext(c.ctx, "Dropping sentiment for unknown or completed request", "request_id", m.result.RequestID.String())
		c.metrics.LateRepliesDropped.WithLabelValues(string(workerSentiment)).Inc()
		return
	}

	c.metrics.SentimentLatency.Observe(c.clock.Since(entry.CreatedAt).Seconds())
	c.emit(newQueryResultFrame(entry))

	if label, ok := c.history.Summary(); ok {
		c.emit(newSummaryFrame(label))
	}
}

func (c *Coordinator) handleWorkerFailure(m workerFailureMsg) {
	c.metrics.WorkerFailures.WithLabelValues(string(m.worker)).Inc()

	switch m.worker {
	case workerPoller:
		slog.WarnContext(c.ctx, "Poll failed, retrying on next tick", "generation", m.generation, "error", m.err)
	default:
		slog.WarnContext(c.ctx, "Worker request failed", "worker", string(m.worker), "error", m.err)
		c.emit(newErrorFrame(m.worker.request(), failureMessage(m.worker)))
	}
}

func (c *Coordinator) handleWorkerCrash(m workerCrashMsg) {
	switch m.worker {
	case workerPoller:
		if c.poller == nil || m.generation != c.generation {
			return
		}
		c.poller = nil
		if !c.pollerPolicy.Allow() {
			c.pollerDown = true
			c.state = StateIdle
			c.metrics.WorkersDown.WithLabelValues(string(workerPoller)).Inc()
			slog.ErrorContext(c.ctx, "Poller exceeded restart budget", "error", m.err, "max_restarts", c.cfg.MaxRestarts, "window", c.cfg.RestartWindow)
			return
		}
		c.metrics.WorkerRestarts.WithLabelValues(string(workerPoller)).Inc()
		slog.WarnContext(c.ctx, "Restarting poller", "error", m.err)
		c.startPoller()

	case workerSentiment:
		if c.sentimentDown || m.generation != c.sentimentGen {
			return
		}
		c.sentiment = nil
		clear(c.queued)

		var panicErr *sentiment.PanicError
		if errors.As(m.err, &panicErr) && c.history.Fail(panicErr.RequestID) {
			slog.WarnContext(c.ctx, "Batch crashed the sentiment worker, not retried", "request_id", panicErr.RequestID.String())
		}
		if !c.sentimentPolicy.Allow() {
			c.sentimentDown = true
			c.metrics.WorkersDown.WithLabelValues(string(workerSentiment)).Inc()
			slog.ErrorContext(c.ctx, "Sentiment worker exceeded restart budget", "error", m.err, "max_restarts", c.cfg.MaxRestarts, "window", c.cfg.RestartWindow)
			return
		}
		c.metrics.WorkerRestarts.WithLabelValues(string(workerSentiment)).Inc()
		slog.WarnContext(c.ctx, "Restarting sentiment worker", "error", m.err)
		c.startSentiment()

	default:
		c.metrics.WorkerFailures.WithLabelValues(string(m.worker)).Inc()
		slog.ErrorContext(c.ctx, "Transient worker crashed", "worker", string(m.worker), "error", m.err)
		c.emit(newErrorFrame(m.worker.request(), failureMessage(m.worker)))
	}
}

func (c *Coordinator) startPoller() {
	c.generation++
	c.pollerDown = false
	c.poller = startPoller(c.ctx, c.scheduler, c.cfg.PollInterval, c.generation, c.query, c.source, c.post)
}

func (c *Coordinator) stopPoller() {
	if c.poller != nil {
		c.poller.stop()
		c.poller = nil
	}
}

// startSentiment starts a fresh worker and resubmits every result still
// waiting for a label, since a replaced worker's queue is gone.
func (c *Coordinator) startSentiment() {
	c.sentimentGen++
	gen := c.sentimentGen
	c.sentimentDown = false
	clear(c.queued)
	c.sentiment = sentiment.StartWorker(c.ctx, c.scorer,
		func(r sentiment.Result) { c.post(sentimentResultMsg{result: r}) },
		func(err error) { c.post(workerCrashMsg{worker: workerSentiment, generation: gen, err: err}) },
	)
	c.dispatchPending()
}

// dispatchPending hands history entries awaiting a label to the sentiment
// worker, oldest first, skipping those it already holds. A refused dispatch
// is retried on the next reply or restart.
func (c *Coordinator) dispatchPending() {
	if c.sentimentDown || c.sentiment == nil {
		return
	}
	for _, entry := range c.history.Entries() {
		if !entry.awaitingSentiment() {
			continue
		}
		if _, ok := c.queued[entry.ID]; ok {
			continue
		}
		if err := c.sentiment.Analyze(entry.ID, entry.Items); err != nil {
			slog.DebugContext(c.ctx, "Sentiment dispatch deferred", "request_id", entry.ID.String(), "error", err)
			return
		}
		c.queued[entry.ID] = struct{}{}
	}
}

// emit sends f to the client. A failed send ends the session.
func (c *Coordinator) emit(f Frame) {
	if c.ctx.Err() != nil {
		return
	}
	if err := c.outbox.Send(f); err != nil {
		slog.WarnContext(c.ctx, "Outbound frame rejected, closing session", "type", f.FrameType(), "error", err)
		c.cancel()
		return
	}
	c.metrics.FramesEmitted.WithLabelValues(f.FrameType()).Inc()
}

func (c *Coordinator) currentSnapshot() Snapshot {
	return Snapshot{
		State:         c.state,
		Query:         c.query,
		Delivered:     len(c.delivered),
		History:       c.history.Entries(),
		PollerDown:    c.pollerDown,
		SentimentDown: c.sentimentDown,
	}
}

func (c *Coordinator) teardown() {
	c.cancel()
	c.stopPoller()
	if c.sentiment != nil {
		c.sentiment.Stop()
	}
	c.metrics.ActiveSessions.Dec()
	slog.InfoContext(c.ctx, "Session closed", "session_id", c.id.String(), "history", c.history.Len(), "pending", c.history.Pending())
}

func failureMessage(kind workerKind) string {
	switch kind {
	case workerProfile:
		return "failed to load channel profile"
	case workerStats:
		return "failed to compute word statistics"
	default:
		return "request failed"
	}
}
