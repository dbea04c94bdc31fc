package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

func newTestIndex() *Index {
	return New("test-actor", ltm.DefaultConfig())
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("stores facts in insertion order", func(t *testing.T) {
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("first", []float32{1, 0}, ltm.TypeFact, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("second", []float32{0, 1}, ltm.TypeFact, 0.5)))

		all, err := idx.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "first", all[0].Content)
		assert.Equal(t, "second", all[1].Content)
	})

	t.Run("rejects empty content silently", func(t *testing.T) {
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("   ", []float32{1, 0}, ltm.TypeFact, 0.5)))
		assert.Equal(t, 0, idx.Count())
	})

	t.Run("near-duplicate overwrites in place", func(t *testing.T) {
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("player likes ale", []float32{1, 0, 0}, ltm.TypePreference, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("unrelated", []float32{0, 1, 0}, ltm.TypeFact, 0.5)))

		// Same direction, different magnitude: similarity 1.0.
		require.NoError(t, idx.Add(ctx, ltm.NewFact("player prefers ale over mead", []float32{2, 0, 0}, ltm.TypePreference, 0.7)))

		assert.Equal(t, 2, idx.Count())
		all, err := idx.All(ctx)
		require.NoError(t, err)
		// The replacement keeps the old fact's position.
		assert.Equal(t, "player prefers ale over mead", all[0].Content)
		assert.Equal(t, "unrelated", all[1].Content)
	})

	t.Run("below dedup threshold appends", func(t *testing.T) {
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("a", []float32{1, 0}, ltm.TypeFact, 0.5)))
		// cosine of 45 degrees is about 0.707, well below 0.95
		require.NoError(t, idx.Add(ctx, ltm.NewFact("b", []float32{1, 1}, ltm.TypeFact, 0.5)))
		assert.Equal(t, 2, idx.Count())
	})

	t.Run("fact without embedding never dedups", func(t *testing.T) {
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("a", []float32{1, 0}, ltm.TypeFact, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("b", nil, ltm.TypeFact, 0.5)))
		assert.Equal(t, 2, idx.Count())
	})
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *Index {
		t.Helper()
		idx := newTestIndex()
		require.NoError(t, idx.Add(ctx, ltm.NewFact("exact match", []float32{1, 0, 0}, ltm.TypeFact, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("close match", []float32{0.9, 0.1, 0}, ltm.TypeFact, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("unrelated", []float32{0, 0, 1}, ltm.TypeFact, 0.5)))
		return idx
	}

	t.Run("orders by descending similarity", func(t *testing.T) {
		idx := seed(t)
		got, err := idx.Retrieve(ctx, []float32{1, 0, 0}, 10, ltm.UseDefaultThreshold)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "exact match", got[0].Content)
		assert.Equal(t, "close match", got[1].Content)
	})

	t.Run("threshold filters matches", func(t *testing.T) {
		idx := seed(t)
		got, err := idx.Retrieve(ctx, []float32{1, 0, 0}, 10, 0.999)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "exact match", got[0].Content)
	})

	t.Run("topK truncates", func(t *testing.T) {
		idx := seed(t)
		got, err := idx.Retrieve(ctx, []float32{1, 0, 0}, 1, ltm.UseDefaultThreshold)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "exact match", got[0].Content)
	})

	t.Run("equal scores keep insertion order", func(t *testing.T) {
		idx := newTestIndex()
		// Both score ~0.707 against the query while being orthogonal to
		// each other, so neither triggers the dedup path.
		require.NoError(t, idx.Add(ctx, ltm.NewFact("older", []float32{1, 0, 0}, ltm.TypeFact, 0.5)))
		require.NoError(t, idx.Add(ctx, ltm.NewFact("newer", []float32{0, 1, 0}, ltm.TypeFact, 0.5)))

		got, err := idx.Retrieve(ctx, []float32{1, 1, 0}, 10, 0.5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "older", got[0].Content)
		assert.Equal(t, "newer", got[1].Content)
	})

	t.Run("nil query returns nothing", func(t *testing.T) {
		idx := seed(t)
		got, err := idx.Retrieve(ctx, nil, 10, ltm.UseDefaultThreshold)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("zero topK returns nothing", func(t *testing.T) {
		idx := seed(t)
		got, err := idx.Retrieve(ctx, []float32{1, 0, 0}, 0, ltm.UseDefaultThreshold)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	fact := ltm.NewFact("to delete", []float32{1, 0}, ltm.TypeFact, 0.5)
	require.NoError(t, idx.Add(ctx, fact))

	removed, err := idx.Remove(ctx, fact.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, idx.Count())

	removed, err = idx.Remove(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	require.NoError(t, idx.Add(ctx, ltm.NewFact("trivial", []float32{1, 0}, ltm.TypeDetail, 0.2)))
	require.NoError(t, idx.Add(ctx, ltm.NewFact("important", []float32{0, 1}, ltm.TypePromise, 0.9)))

	removed, err := idx.Prune(ctx, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := idx.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "important", all[0].Content)
}

func TestByType(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	require.NoError(t, idx.Add(ctx, ltm.NewFact("a promise", []float32{1, 0}, ltm.TypePromise, 0.5)))
	require.NoError(t, idx.Add(ctx, ltm.NewFact("a detail", []float32{0, 1}, ltm.TypeDetail, 0.5)))
	require.NoError(t, idx.Add(ctx, ltm.NewFact("another promise", []float32{1, 1}, ltm.TypePromise, 0.5)))

	promises, err := idx.ByType(ctx, ltm.TypePromise)
	require.NoError(t, err)
	require.Len(t, promises, 2)
	assert.Equal(t, "a promise", promises[0].Content)
	assert.Equal(t, "another promise", promises[1].Content)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	require.NoError(t, idx.Add(ctx, ltm.NewFact("a", []float32{1, 0}, ltm.TypeFact, 0.5)))
	require.NoError(t, idx.Clear(ctx))
	assert.Equal(t, 0, idx.Count())
}
