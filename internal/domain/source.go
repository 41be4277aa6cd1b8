package domain

import "context"

// ContentSource is the external search provider.
// Implementations must be safe for concurrent use.
type ContentSource interface {
	Search(ctx context.Context, query string, count int) ([]Item, error)
	Channel(ctx context.Context, channelID string) (*Channel, error)
	ChannelItems(ctx context.Context, channelID string, count int) ([]Item, error)
}

// Batch sizes used against the content source.
const (
	SearchBatchSize  = 10
	ProfileBatchSize = 10
	StatsBatchSize   = 50
)
