// Package inmemory is the canonical slice-backed fact index. It keeps
// insertion order, which the retrieval tie-break and dedup-overwrite
// semantics depend on.
package inmemory

import (
	"context"
	"sort"
	"strings"

	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

// Index is a slice-backed ltm.Index.
//
// It is not internally synchronized; the owning conversation store guards
// access along with the rest of the actor's state.
type Index struct {
	actorID string
	cfg     ltm.Config
	facts   []ltm.Fact
}

// New creates an empty index for an actor.
func New(actorID string, cfg ltm.Config) *Index {
	if cfg.RetrievalThreshold == 0 {
		cfg.RetrievalThreshold = ltm.DefaultConfig().RetrievalThreshold
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = ltm.DefaultConfig().DedupThreshold
	}
	return &Index{actorID: actorID, cfg: cfg}
}

// Factory returns an ltm.Factory producing in-memory indexes.
func Factory(cfg ltm.Config) ltm.Factory {
	return func(actorID string) ltm.Index {
		return New(actorID, cfg)
	}
}

// Add implements ltm.Index.
func (idx *Index) Add(ctx context.Context, fact ltm.Fact) error {
	if strings.TrimSpace(fact.Content) == "" {
		log.Warn("Rejecting fact with empty content", "actor_id", idx.actorID)
		return nil
	}

	if len(fact.Embedding) > 0 {
		if pos := idx.nearDuplicate(fact.Embedding); pos >= 0 {
			old := idx.facts[pos]
			idx.facts[pos] = fact
			log.Debug("Overwrote near-duplicate fact",
				"actor_id", idx.actorID,
				"old", old.Content,
				"new", fact.Content)
			return nil
		}
	}

	idx.facts = append(idx.facts, fact)
	log.Debug("Added fact", "actor_id", idx.actorID, "fact", fact.String())
	return nil
}

// AddBatch implements ltm.Index.
func (idx *Index) AddBatch(ctx context.Context, facts []ltm.Fact) error {
	for _, fact := range facts {
		if err := idx.Add(ctx, fact); err != nil {
			return err
		}
	}
	return nil
}

// nearDuplicate returns the position of the most similar existing fact at
// or above the dedup threshold, or -1.
func (idx *Index) nearDuplicate(embedding []float32) int {
	best := -1
	var bestScore float32
	for i, fact := range idx.facts {
		score := ltm.CosineSimilarity(fact.Embedding, embedding)
		if score >= idx.cfg.DedupThreshold && score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// Retrieve implements ltm.Index.
func (idx *Index) Retrieve(ctx context.Context, query []float32, topK int, threshold float32) ([]ltm.Fact, error) {
	if len(query) == 0 || len(idx.facts) == 0 || topK <= 0 {
		return nil, nil
	}

	if threshold < 0 {
		threshold = idx.cfg.RetrievalThreshold
	}

	type scored struct {
		fact  ltm.Fact
		score float32
	}
	matches := make([]scored, 0, len(idx.facts))
	for _, fact := range idx.facts {
		score := ltm.CosineSimilarity(fact.Embedding, query)
		if score >= threshold {
			matches = append(matches, scored{fact: fact, score: score})
		}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	out := make([]ltm.Fact, len(matches))
	for i, m := range matches {
		out[i] = m.fact
	}
	return out, nil
}

// Remove implements ltm.Index.
func (idx *Index) Remove(ctx context.Context, id string) (bool, error) {
	for i, fact := range idx.facts {
		if fact.ID == id {
			idx.facts = append(idx.facts[:i], idx.facts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Prune implements ltm.Index.
func (idx *Index) Prune(ctx context.Context, minImportance float32) (int, error) {
	kept := idx.facts[:0]
	for _, fact := range idx.facts {
		if fact.Importance >= minImportance {
			kept = append(kept, fact)
		}
	}
	removed := len(idx.facts) - len(kept)
	idx.facts = kept
	if removed > 0 {
		log.Debug("Pruned low-importance facts", "actor_id", idx.actorID, "removed", removed)
	}
	return removed, nil
}

// All implements ltm.Index.
func (idx *Index) All(ctx context.Context) ([]ltm.Fact, error) {
	out := make([]ltm.Fact, len(idx.facts))
	copy(out, idx.facts)
	return out, nil
}

// ByType implements ltm.Index.
func (idx *Index) ByType(ctx context.Context, factType ltm.FactType) ([]ltm.Fact, error) {
	var out []ltm.Fact
	for _, fact := range idx.facts {
		if fact.Type == factType {
			out = append(out, fact)
		}
	}
	return out, nil
}

// Clear implements ltm.Index.
func (idx *Index) Clear(ctx context.Context) error {
	idx.facts = nil
	return nil
}

// Count implements ltm.Index.
func (idx *Index) Count() int {
	return len(idx.facts)
}
