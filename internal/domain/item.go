package domain

// Item is a single piece of content returned by the content source.
// Items are immutable once extracted.
type Item struct {
	ID           string `json:"videoId"`
	Title        string `json:"title"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail"`
}

// Validate reports ErrMalformedItem when the item cannot be addressed.
func (i Item) Validate() error {
	if i.ID == "" {
		return ErrMalformedItem
	}
	return nil
}
