// Package ltm provides the long-term fact memory for a single actor:
// vector-similarity retrieval over extracted facts with
// dedup-by-overwrite semantics.
package ltm

import (
	"context"
)

// Config holds per-index thresholds.
type Config struct {
	// RetrievalThreshold is the minimum similarity for Retrieve matches
	RetrievalThreshold float32 `yaml:"retrieval_threshold"`

	// DedupThreshold is the near-duplicate similarity above which a new
	// fact silently replaces an existing one. Kept configurable: two
	// genuinely distinct facts can embed very closely.
	DedupThreshold float32 `yaml:"dedup_threshold"`
}

// DefaultConfig returns the default index thresholds.
func DefaultConfig() Config {
	return Config{
		RetrievalThreshold: 0.7,
		DedupThreshold:     0.95,
	}
}

// UseDefaultThreshold passed as the threshold to Retrieve selects the
// index's configured retrieval threshold.
const UseDefaultThreshold float32 = -1

// Index is the interface all long-term fact index backends implement.
// An Index is owned exclusively by one actor.
type Index interface {
	// Add stores a fact. Facts with empty content are rejected silently
	// (logged, no error). When an existing fact's similarity to the new
	// fact's embedding meets the dedup threshold, the old fact is removed
	// and the new one takes its place: overwrite, not merge.
	Add(ctx context.Context, fact Fact) error

	// AddBatch adds facts in order, applying Add semantics to each.
	AddBatch(ctx context.Context, facts []Fact) error

	// Retrieve returns up to topK facts whose similarity to query meets
	// the threshold, ordered by descending similarity with ties broken by
	// insertion order. A nil or empty query returns no facts.
	// Pass UseDefaultThreshold to use the configured threshold.
	Retrieve(ctx context.Context, query []float32, topK int, threshold float32) ([]Fact, error)

	// Remove deletes a fact by id, reporting whether it existed.
	Remove(ctx context.Context, id string) (bool, error)

	// Prune removes all facts below the importance threshold and returns
	// how many were removed. Explicit operation, never automatic.
	Prune(ctx context.Context, minImportance float32) (int, error)

	// All returns every stored fact in insertion order.
	All(ctx context.Context) ([]Fact, error)

	// ByType returns facts of one type in insertion order.
	ByType(ctx context.Context, factType FactType) ([]Fact, error)

	// Clear removes every fact.
	Clear(ctx context.Context) error

	// Count returns the number of stored facts.
	Count() int
}

// Factory creates an Index for an actor id. The convo store uses it to
// build each actor's index lazily.
type Factory func(actorID string) Index
