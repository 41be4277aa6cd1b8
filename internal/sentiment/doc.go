// Package sentiment scores batches of items against two word lists.
//
// A Lexicon holds the positive and negative word sets, loaded once at startup.
// The Analyzer labels single descriptions and aggregates a batch by majority vote.
// Worker wraps an Analyzer in a mailbox goroutine that answers requests keyed by id.
package sentiment
