package domain

// NotAvailable is used for optional channel fields the source does not report.
const NotAvailable = "N/A"

// Channel is the detail record of a content channel.
type Channel struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	PublishedAt           string `json:"publishedAt"`
	Country               string `json:"country"`
	CustomURL             string `json:"customUrl"`
	ThumbnailURL          string `json:"thumbnailUrl"`
	SubscriberCount       uint64 `json:"subscriberCount"`
	HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
	ViewCount             uint64 `json:"viewCount"`
	VideoCount            uint64 `json:"videoCount"`
}

// ChannelProfile is a channel together with its latest items.
type ChannelProfile struct {
	Channel Channel
	Items   []Item
}
