package sentiment

import (
	"strings"

	"github.com/pscheid92/tubepulse/internal/domain"
)

// threshold is the share of matching words a description needs to be
// labelled positive or negative.
const threshold = 0.70

// Analyzer labels descriptions by the share of positive or negative words.
type Analyzer struct {
	lexicon *Lexicon
}

// NewAnalyzer creates an analyzer scoring against lexicon.
func NewAnalyzer(lexicon *Lexicon) *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

// Classify labels a single description. Positive wins when both
// shares reach the threshold.
func (a *Analyzer) Classify(description string) domain.Sentiment {
	words := strings.Fields(description)
	if len(words) == 0 {
		return domain.SentimentNeutral
	}

	var positive, negative int
	for _, w := range words {
		if a.lexicon.IsPositive(w) {
			positive++
		}
		if a.lexicon.IsNegative(w) {
			negative++
		}
	}

	total := float64(len(words))
	switch {
	case float64(positive)/total >= threshold:
		return domain.SentimentPositive
	case float64(negative)/total >= threshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// Aggregate returns the majority label of the batch. A tie for the top
// count, or an empty batch, yields NEUTRAL.
func (a *Analyzer) Aggregate(items []domain.Item) domain.Sentiment {
	labels := make([]domain.Sentiment, len(items))
	for i, item := range items {
		labels[i] = a.Classify(item.Description)
	}
	return Majority(labels)
}

// Majority picks the most frequent known label; ties and empty input are NEUTRAL.
func Majority(labels []domain.Sentiment) domain.Sentiment {
	counts := map[domain.Sentiment]int{}
	for _, l := range labels {
		if l.IsKnown() {
			counts[l]++
		}
	}

	best, bestCount, tied := domain.SentimentNeutral, 0, false
	for _, l := range []domain.Sentiment{domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative} {
		switch c := counts[l]; {
		case c > bestCount:
			best, bestCount, tied = l, c, false
		case c == bestCount && c > 0:
			tied = true
		}
	}

	if bestCount == 0 || tied {
		return domain.SentimentNeutral
	}
	return best
}
