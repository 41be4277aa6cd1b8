package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/sentiment"
	"github.com/stretchr/testify/require"
)

// --- Content source ---

type mockSource struct {
	mu          sync.Mutex
	searchFn    func(query string, call int) ([]domain.Item, error)
	channelFn   func(id string) (*domain.Channel, error)
	itemsFn     func(id string) ([]domain.Item, error)
	searchCalls []string
}

func (m *mockSource) Search(_ context.Context, query string, _ int) ([]domain.Item, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, query)
	call := len(m.searchCalls)
	fn := m.searchFn
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(query, call)
}

func (m *mockSource) Channel(_ context.Context, id string) (*domain.Channel, error) {
	if m.channelFn == nil {
		return nil, domain.ErrNotFound
	}
	return m.channelFn(id)
}

func (m *mockSource) ChannelItems(_ context.Context, id string, _ int) ([]domain.Item, error) {
	if m.itemsFn == nil {
		return nil, nil
	}
	return m.itemsFn(id)
}

func (m *mockSource) getSearchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.searchCalls))
	copy(cp, m.searchCalls)
	return cp
}

// --- Outbox ---

type mockOutbox struct {
	mu      sync.Mutex
	frames  []Frame
	sendErr error
	panicOn string
}

func (m *mockOutbox) Send(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn != "" && f.FrameType() == m.panicOn {
		panic("outbox exploded")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockOutbox) getFrames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Frame, len(m.frames))
	copy(cp, m.frames)
	return cp
}

func (m *mockOutbox) framesOfType(frameType string) []Frame {
	var out []Frame
	for _, f := range m.getFrames() {
		if f.FrameType() == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockOutbox) countOf(frameType string) int {
	return len(m.framesOfType(frameType))
}

// --- Scorers ---

// panicScorer panics for batches whose first item has ID "boom".
type panicScorer struct {
	inner sentiment.Scorer
}

func (p panicScorer) Aggregate(items []domain.Item) domain.Sentiment {
	if len(items) > 0 && items[0].ID == "boom" {
		panic("scorer exploded")
	}
	return p.inner.Aggregate(items)
}

// gatedScorer holds the "boom" batch until release is closed, then panics.
type gatedScorer struct {
	inner   sentiment.Scorer
	started chan struct{}
	release chan struct{}
}

func newGatedScorer() *gatedScorer {
	return &gatedScorer{inner: testScorer(), started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedScorer) Aggregate(items []domain.Item) domain.Sentiment {
	if len(items) > 0 && items[0].ID == "boom" {
		select {
		case g.started <- struct{}{}:
		default:
		}
		<-g.release
		panic("scorer exploded")
	}
	return g.inner.Aggregate(items)
}

// --- Helpers ---

const (
	testPollInterval = 20 * time.Second
	testHeartbeat    = time.Hour
)

var errUpstream = errors.New("upstream unavailable")

func testScorer() *sentiment.Analyzer {
	return sentiment.NewAnalyzer(sentiment.NewLexicon([]string{"Happy", "great"}, []string{"sad", "awful"}))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = testPollInterval
	cfg.HeartbeatInterval = testHeartbeat
	return cfg
}

type harness struct {
	coord   *Coordinator
	source  *mockSource
	outbox  *mockOutbox
	clock   *clockwork.FakeClock
	metrics *metrics.SessionMetrics
}

func newHarness(t *testing.T, source *mockSource, cfg Config, scorer sentiment.Scorer) *harness {
	t.Helper()
	if scorer == nil {
		scorer = testScorer()
	}
	h := &harness{
		source:  source,
		outbox:  &mockOutbox{},
		clock:   clockwork.NewFakeClock(),
		metrics: metrics.NewSessionMetrics(prometheus.NewRegistry()),
	}
	h.coord = NewCoordinator(uuid.New(), cfg, source, scorer, h.outbox, h.clock, h.metrics)
	h.coord.Start(context.Background())
	t.Cleanup(func() {
		h.coord.Close()
		<-h.coord.Done()
	})
	return h
}

func (h *harness) send(t *testing.T, raw string) {
	t.Helper()
	require.True(t, h.coord.HandleFrame([]byte(raw)), "session closed")
}

func (h *harness) search(t *testing.T, query string) {
	t.Helper()
	h.send(t, fmt.Sprintf(`{"type":"search","query":%q}`, query))
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.coord.inspect()
	require.NoError(t, err)
	return s
}

func item(id, description string) domain.Item {
	return domain.Item{ID: id, Title: "title " + id, ChannelID: "ch", ChannelTitle: "Channel", Description: description}
}
