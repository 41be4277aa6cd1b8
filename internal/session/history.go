package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/sentiment"
)

const defaultHistorySize = 10

// QueryResult is one delivered batch. Sentiment stays SentimentUnknown until
// the sentiment reply for ID is joined. Failed marks a batch whose scoring
// crashed the sentiment worker; it is never scored again.
type QueryResult struct {
	ID        uuid.UUID
	Query     string
	Items     []domain.Item
	Sentiment domain.Sentiment
	CreatedAt time.Time
	Failed    bool
}

func (r QueryResult) Pending() bool {
	return !r.Sentiment.IsKnown()
}

func (r QueryResult) awaitingSentiment() bool {
	return r.Pending() && !r.Failed
}

// History is a bounded FIFO of query results, oldest first.
// Not safe for concurrent use; owned by the coordinator goroutine.
type History struct {
	capacity int
	entries  []QueryResult
}

// NewHistory returns an empty history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{capacity: capacity, entries: make([]QueryResult, 0, capacity)}
}

// Append adds r and evicts the oldest entry when full.
func (h *History) Append(r QueryResult) (evicted QueryResult, ok bool) {
	if len(h.entries) == h.capacity {
		evicted, ok = h.entries[0], true
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.entries = append(h.entries, r)
	return evicted, ok
}

// Complete sets the label of the pending entry id. It reports false if the
// entry is gone or already has a label.
func (h *History) Complete(id uuid.UUID, label domain.Sentiment) (QueryResult, bool) {
	if !label.IsKnown() {
		return QueryResult{}, false
	}
	for i := range h.entries {
		if h.entries[i].ID != id {
			continue
		}
		if !h.entries[i].Pending() {
			return QueryResult{}, false
		}
		h.entries[i].Sentiment = label
		return h.entries[i], true
	}
	return QueryResult{}, false
}

// Fail marks the pending entry id as unscorable. It reports false if the
// entry is gone or already has a label.
func (h *History) Fail(id uuid.UUID) bool {
	for i := range h.entries {
		if h.entries[i].ID == id {
			if !h.entries[i].Pending() {
				return false
			}
			h.entries[i].Failed = true
			return true
		}
	}
	return false
}

// Summary is the majority label over completed entries.
func (h *History) Summary() (domain.Sentiment, bool) {
	var labels []domain.Sentiment
	for _, e := range h.entries {
		if !e.Pending() {
			labels = append(labels, e.Sentiment)
		}
	}
	if len(labels) == 0 {
		return domain.SentimentUnknown, false
	}
	return sentiment.Majority(labels), true
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) Pending() int {
	n := 0
	for _, e := range h.entries {
		if e.Pending() {
			n++
		}
	}
	return n
}

// Entries returns a copy, oldest first.
func (h *History) Entries() []QueryResult {
	out := make([]QueryResult, len(h.entries))
	copy(out, h.entries)
	return out
}
