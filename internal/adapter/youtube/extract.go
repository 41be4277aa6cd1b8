package youtube

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/pscheid92/tubepulse/internal/domain"
	yt "google.golang.org/api/youtube/v3"
)

// searchItems converts a search response, skipping results without a video id.
func searchItems(ctx context.Context, results []*yt.SearchResult) []domain.Item {
	items := make([]domain.Item, 0, len(results))
	for _, r := range results {
		item, err := toItem(r)
		if err != nil {
			slog.DebugContext(ctx, "Skipping malformed search result", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func toItem(r *yt.SearchResult) (domain.Item, error) {
	if r == nil || r.Id == nil || r.Id.VideoId == "" {
		return domain.Item{}, fmt.Errorf("%w: missing video id", domain.ErrMalformedItem)
	}
	if r.Snippet == nil {
		return domain.Item{}, fmt.Errorf("%w: video %s has no snippet", domain.ErrMalformedItem, r.Id.VideoId)
	}

	s := r.Snippet
	return domain.Item{
		ID:           r.Id.VideoId,
		Title:        html.UnescapeString(s.Title),
		ChannelID:    s.ChannelId,
		ChannelTitle: html.UnescapeString(s.ChannelTitle),
		Description:  html.UnescapeString(s.Description),
		ThumbnailURL: thumbnailURL(s.Thumbnails),
	}, nil
}

func toChannel(c *yt.Channel) (*domain.Channel, error) {
	if c == nil || c.Id == "" || c.Snippet == nil {
		return nil, fmt.Errorf("%w: channel without id or snippet", domain.ErrMalformedItem)
	}

	s := c.Snippet
	ch := &domain.Channel{
		ID:           c.Id,
		Title:        s.Title,
		Description:  s.Description,
		PublishedAt:  s.PublishedAt,
		Country:      orNotAvailable(s.Country),
		CustomURL:    orNotAvailable(s.CustomUrl),
		ThumbnailURL: thumbnailURL(s.Thumbnails),
	}
	if st := c.Statistics; st != nil {
		ch.SubscriberCount = st.SubscriberCount
		ch.HiddenSubscriberCount = st.HiddenSubscriberCount
		ch.ViewCount = st.ViewCount
		ch.VideoCount = st.VideoCount
	}
	return ch, nil
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func orNotAvailable(s string) string {
	if s == "" {
		return domain.NotAvailable
	}
	return s
}
