package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/wordstats"
)

// runProfile loads channel detail and its latest items. It posts exactly one
// reply: a result, a failure or a crash.
func runProfile(ctx context.Context, source domain.ContentSource, channelID string, post func(message) bool) {
	defer recoverTransient(ctx, workerProfile, post)

	channel, err := source.Channel(ctx, channelID)
	if err != nil {
		post(workerFailureMsg{worker: workerProfile, err: fmt.Errorf("channel %s: %w", channelID, err)})
		return
	}

	items, err := source.ChannelItems(ctx, channelID, domain.ProfileBatchSize)
	if err != nil {
		post(workerFailureMsg{worker: workerProfile, err: fmt.Errorf("channel items %s: %w", channelID, err)})
		return
	}

	post(profileResultMsg{profile: domain.ChannelProfile{Channel: *channel, Items: items}})
}

// runStats builds the word table for the latest items of query.
func runStats(ctx context.Context, source domain.ContentSource, query string, post func(message) bool) {
	defer recoverTransient(ctx, workerStats, post)

	items, err := source.Search(ctx, query, domain.StatsBatchSize)
	if err != nil {
		post(workerFailureMsg{worker: workerStats, err: fmt.Errorf("search %q: %w", query, err)})
		return
	}

	post(statsResultMsg{query: query, table: wordstats.Count(items)})
}

func recoverTransient(ctx context.Context, kind workerKind, post func(message) bool) {
	if r := recover(); r != nil {
		slog.ErrorContext(ctx, "Transient worker panic recovered", "worker", string(kind), "panic", r)
		post(workerCrashMsg{worker: kind, err: fmt.Errorf("%w: %s: %v", domain.ErrWorkerPanic, kind, r)})
	}
}
