// Package chromem backs the fact index with a chromem-go collection
// (in-process, no server). Similarity search is delegated to chromem;
// fact bookkeeping (insertion order, importance, types) is mirrored
// locally because chromem does not expose document listing.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

// Index is a chromem-go backed ltm.Index.
type Index struct {
	actorID    string
	cfg        ltm.Config
	collection *chromemgo.Collection

	// order and byID mirror collection contents in insertion order
	order []string
	byID  map[string]ltm.Fact
}

// New creates an index backed by a dedicated collection for the actor.
func New(db *chromemgo.DB, actorID string, cfg ltm.Config) (*Index, error) {
	if cfg.RetrievalThreshold == 0 {
		cfg.RetrievalThreshold = ltm.DefaultConfig().RetrievalThreshold
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = ltm.DefaultConfig().DedupThreshold
	}

	// Embeddings are always precomputed by the provider; the collection's
	// embedding func must never run.
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embeddings are precomputed")
	}

	collection, err := db.GetOrCreateCollection("facts-"+actorID, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	return &Index{
		actorID:    actorID,
		cfg:        cfg,
		collection: collection,
		byID:       make(map[string]ltm.Fact),
	}, nil
}

// Factory returns an ltm.Factory producing chromem-backed indexes on a
// shared DB instance.
func Factory(db *chromemgo.DB, cfg ltm.Config) ltm.Factory {
	return func(actorID string) ltm.Index {
		idx, err := New(db, actorID, cfg)
		if err != nil {
			// GetOrCreateCollection only fails on invalid names; fall back
			// to a fresh in-memory DB rather than return a nil index.
			log.Error("Failed to create chromem collection, using fallback DB",
				"actor_id", actorID, "error", err)
			idx, _ = New(chromemgo.NewDB(), actorID, cfg)
		}
		return idx
	}
}

// Add implements ltm.Index.
func (idx *Index) Add(ctx context.Context, fact ltm.Fact) error {
	if strings.TrimSpace(fact.Content) == "" {
		log.Warn("Rejecting fact with empty content", "actor_id", idx.actorID)
		return nil
	}

	if len(fact.Embedding) > 0 && idx.collection.Count() > 0 {
		results, err := idx.collection.QueryEmbedding(ctx, fact.Embedding, 1, nil, nil)
		if err != nil {
			return fmt.Errorf("chromem dedup query: %w", err)
		}
		if len(results) > 0 && results[0].Similarity >= idx.cfg.DedupThreshold {
			if err := idx.remove(ctx, results[0].ID); err != nil {
				return err
			}
			log.Debug("Overwrote near-duplicate fact",
				"actor_id", idx.actorID,
				"old", results[0].Content,
				"new", fact.Content)
		}
	}

	err := idx.collection.AddDocument(ctx, chromemgo.Document{
		ID:        fact.ID,
		Content:   fact.Content,
		Embedding: fact.Embedding,
		Metadata: map[string]string{
			"type":       string(fact.Type),
			"importance": strconv.FormatFloat(float64(fact.Importance), 'f', -1, 32),
			"created_at": fact.CreatedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("chromem add document: %w", err)
	}

	idx.order = append(idx.order, fact.ID)
	idx.byID[fact.ID] = fact
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

// Retrieve implements ltm.Index.
func (idx *Index) Retrieve(ctx context.Context, query []float32, topK int, threshold float32) ([]ltm.Fact, error) {
	if len(query) == 0 || topK <= 0 || idx.collection.Count() == 0 {
		return nil, nil
	}

	if threshold < 0 {
		threshold = idx.cfg.RetrievalThreshold
	}

	// chromem rejects nResults beyond the collection size
	n := topK
	if count := idx.collection.Count(); n > count {
		n = count
	}

	results, err := idx.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	var out []ltm.Fact
	for _, result := range results {
		if result.Similarity < threshold {
			continue
		}
		if fact, ok := idx.byID[result.ID]; ok {
			out = append(out, fact)
		}
	}
	return out, nil
}

// Remove implements ltm.Index.
func (idx *Index) Remove(ctx context.Context, id string) (bool, error) {
	if _, ok := idx.byID[id]; !ok {
		return false, nil
	}
	if err := idx.remove(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (idx *Index) remove(ctx context.Context, id string) error {
	if err := idx.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	delete(idx.byID, id)
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return nil
}

// Prune implements ltm.Index.
func (idx *Index) Prune(ctx context.Context, minImportance float32) (int, error) {
	var doomed []string
	for _, id := range idx.order {
		if idx.byID[id].Importance < minImportance {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		if err := idx.remove(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

// All implements ltm.Index.
func (idx *Index) All(ctx context.Context) ([]ltm.Fact, error) {
	out := make([]ltm.Fact, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.byID[id])
	}
	return out, nil
}

// ByType implements ltm.Index.
func (idx *Index) ByType(ctx context.Context, factType ltm.FactType) ([]ltm.Fact, error) {
	var out []ltm.Fact
	for _, id := range idx.order {
		if fact := idx.byID[id]; fact.Type == factType {
			out = append(out, fact)
		}
	}
	return out, nil
}

// Clear implements ltm.Index.
func (idx *Index) Clear(ctx context.Context) error {
	for _, id := range append([]string(nil), idx.order...) {
		if err := idx.remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Count implements ltm.Index.
func (idx *Index) Count() int {
	return len(idx.order)
}
