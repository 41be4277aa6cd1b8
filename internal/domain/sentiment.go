package domain

import "fmt"

// Sentiment is the aggregate label of a batch of items.
// The zero value means the label has not been computed yet.
type Sentiment int

const (
	SentimentUnknown Sentiment = iota
	SentimentPositive
	SentimentNeutral
	SentimentNegative
)

func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "POSITIVE"
	case SentimentNeutral:
		return "NEUTRAL"
	case SentimentNegative:
		return "NEGATIVE"
	default:
		return "UNKNOWN"
	}
}

// Emoticon is the wire form of the label.
func (s Sentiment) Emoticon() string {
	switch s {
	case SentimentPositive:
		return ":-)"
	case SentimentNeutral:
		return ":-|"
	case SentimentNegative:
		return ":-("
	default:
		return ""
	}
}

// IsKnown reports whether the label has been set.
func (s Sentiment) IsKnown() bool {
	return s >= SentimentPositive && s <= SentimentNegative
}

func (s Sentiment) MarshalText() ([]byte, error) {
	if !s.IsKnown() {
		return nil, fmt.Errorf("sentiment %d has no wire form", int(s))
	}
	return []byte(s.Emoticon()), nil
}

func (s *Sentiment) UnmarshalText(b []byte) error {
	switch string(b) {
	case ":-)":
		*s = SentimentPositive
	case ":-|":
		*s = SentimentNeutral
	case ":-(":
		*s = SentimentNegative
	default:
		return fmt.Errorf("unknown sentiment %q", string(b))
	}
	return nil
}
