// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (item.go, sentiment.go, channel.go, source.go, errors.go)
// hold shared types and the ContentSource contract. No implementation code, just contracts.
package domain
