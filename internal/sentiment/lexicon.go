package sentiment

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed words/positive.txt
var defaultPositive []byte

//go:embed words/negative.txt
var defaultNegative []byte

// Lexicon is an immutable pair of word sets. Lookups are exact and case-sensitive.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexicon builds a lexicon from in-memory word lists.
func NewLexicon(positive, negative []string) *Lexicon {
	return &Lexicon{positive: toSet(positive), negative: toSet(negative)}
}

// LoadLexicon reads one word per line from the given files. An empty path
// selects the built-in list for that polarity.
func LoadLexicon(positivePath, negativePath string) (*Lexicon, error) {
	positive, err := readWords(positivePath, defaultPositive)
	if err != nil {
		return nil, fmt.Errorf("failed to load positive words: %w", err)
	}
	negative, err := readWords(negativePath, defaultNegative)
	if err != nil {
		return nil, fmt.Errorf("failed to load negative words: %w", err)
	}
	return NewLexicon(positive, negative), nil
}

func (l *Lexicon) IsPositive(word string) bool {
	_, ok := l.positive[word]
	return ok
}

func (l *Lexicon) IsNegative(word string) bool {
	_, ok := l.negative[word]
	return ok
}

// Size returns the number of positive and negative words.
func (l *Lexicon) Size() (positive, negative int) {
	return len(l.positive), len(l.negative)
}

func readWords(path string, fallback []byte) ([]string, error) {
	var r io.Reader = bytes.NewReader(fallback)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
