package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_EvictsOldestBeyondCapacity(t *testing.T) {
	h := NewHistory(defaultHistorySize)
	ids := make([]uuid.UUID, 12)

	for i := range ids {
		ids[i] = uuid.New()
		evicted, ok := h.Append(QueryResult{ID: ids[i]})
		if i < defaultHistorySize {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, ids[i-defaultHistorySize], evicted.ID)
	}

	entries := h.Entries()
	require.Len(t, entries, defaultHistorySize)
	assert.Equal(t, ids[2], entries[0].ID)
	assert.Equal(t, ids[11], entries[9].ID)
}

func TestHistory_CompleteOnce(t *testing.T) {
	h := NewHistory(3)
	id := uuid.New()
	h.Append(QueryResult{ID: id, Query: "q"})

	got, ok := h.Complete(id, domain.SentimentPositive)
	require.True(t, ok)
	assert.Equal(t, domain.SentimentPositive, got.Sentiment)
	assert.Equal(t, "q", got.Query)

	_, ok = h.Complete(id, domain.SentimentNegative)
	assert.False(t, ok, "label is set exactly once")
	assert.Equal(t, domain.SentimentPositive, h.Entries()[0].Sentiment)
}

func TestHistory_CompleteEvictedOrUnknown(t *testing.T) {
	h := NewHistory(1)
	first := uuid.New()
	h.Append(QueryResult{ID: first})
	h.Append(QueryResult{ID: uuid.New()})

	_, ok := h.Complete(first, domain.SentimentNeutral)
	assert.False(t, ok)

	_, ok = h.Complete(uuid.New(), domain.SentimentNeutral)
	assert.False(t, ok)

	_, ok = h.Complete(h.Entries()[0].ID, domain.SentimentUnknown)
	assert.False(t, ok)
	assert.Equal(t, 1, h.Pending())
}

func TestHistory_Summary(t *testing.T) {
	h := NewHistory(5)
	_, ok := h.Summary()
	assert.False(t, ok)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		h.Append(QueryResult{ID: id})
	}
	h.Complete(ids[0], domain.SentimentNegative)
	h.Complete(ids[1], domain.SentimentPositive)

	label, ok := h.Summary()
	require.True(t, ok)
	assert.Equal(t, domain.SentimentNeutral, label, "tie")

	h.Complete(ids[2], domain.SentimentPositive)
	label, _ = h.Summary()
	assert.Equal(t, domain.SentimentPositive, label)
	assert.Equal(t, 1, h.Pending())
}

func TestHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Append(QueryResult{ID: uuid.New()})
	h.Append(QueryResult{ID: uuid.New()})
	assert.Equal(t, 1, h.Len())
}
