package memory

import (
	"context"
	"time"
)

// Default tuning for the long-term store, matching the behaviour the bot
// shipped with: 100 records per user, one year of retention, and a fairly
// strict similarity cut-off.
const (
	DefaultMaxPerUser    = 100
	DefaultRetentionDays = 365
	DefaultThreshold     = 0.7
	DefaultSearchLimit   = 5
)

// SearchOptions tunes a FindSimilar call. Zero values fall back to the
// package defaults.
type SearchOptions struct {
	// Limit is the maximum number of excerpts returned.
	Limit int
	// Threshold is the minimum cosine similarity for a record to qualify.
	Threshold float64
}

// Store is the pluggable interface for durable per-user long-term memory.
// Implementations must be safe for concurrent use; callers for different
// users never contend on each other's records.
type Store interface {
	// CreateMemory embeds content, appends a new record to the user's
	// sequence, evicts the oldest record when the per-user cap is exceeded,
	// and persists synchronously. Embedding failure is non-fatal — the record
	// is stored with a nil embedding. Only persistence failure returns an error.
	CreateMemory(ctx context.Context, userID, content string, meta Meta) (Record, error)

	// FindSimilar embeds the query and returns the user's records whose
	// cosine similarity meets the threshold, sorted descending by similarity
	// (ties keep original storage order), truncated to the limit. A failed
	// query embedding degrades to an empty result, not an error.
	FindSimilar(ctx context.Context, userID, query string, opts SearchOptions) ([]Excerpt, error)

	// Prune removes records older than the retention window across all users
	// and reports how many were removed. Safe to call repeatedly; pruning an
	// already-pruned store removes nothing.
	Prune(ctx context.Context, retention time.Duration) (int, error)
}
