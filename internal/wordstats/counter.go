// Package wordstats builds word-frequency tables over item text.
package wordstats

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/pscheid92/tubepulse/internal/domain"
)

var separator = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Count tokenizes title and description of every item, lower-cased and split
// on non-word characters, and returns counts sorted by descending frequency.
// Words with equal counts keep the order of their first occurrence.
func Count(items []domain.Item) domain.WordTable {
	index := map[string]int{}
	var table domain.WordTable

	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Description)
		for _, word := range separator.Split(text, -1) {
			if word == "" {
				continue
			}
			if i, ok := index[word]; ok {
				table[i].Count++
				continue
			}
			index[word] = len(table)
			table = append(table, domain.WordCount{Word: word, Count: 1})
		}
	}

	slices.SortStableFunc(table, func(a, b domain.WordCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return table
}
