package compact

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/llm/adapters/mock"
	"github.com/hexfall/npcmind/pkg/mem/convo"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
	"github.com/hexfall/npcmind/pkg/mem/ltm/adapters/inmemory"
)

var testProfile = actor.Profile{
	ID:   "aria",
	Name: "Aria",
}

func newTestStore() *convo.Store {
	return convo.NewStore(0, inmemory.Factory(ltm.DefaultConfig()))
}

func makeHistory(n int) []llm.Message {
	out := make([]llm.Message, 0, n)
	for i := 0; i < n; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		out = append(out, llm.NewMessage(role, fmt.Sprintf("message %d", i)))
	}
	return out
}

func TestSplitPoint(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		retainRatio float64
		want        int
	}{
		{"even split", 10, 0.5, 5},
		{"odd length rounds up", 11, 0.5, 6},
		{"high retain clamps to one", 10, 0.95, 1},
		{"low retain keeps at least one", 10, 0.01, 9},
		{"two messages", 2, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPoint(tt.length, tt.retainRatio))
		})
	}
}

func TestCompactNoOverflow(t *testing.T) {
	provider := mock.New()
	store := newTestStore()
	c := New(provider, store, nil, Config{MaxHistory: 20, RetainRatio: 0.5, SummaryWordLimit: 150})

	history := makeHistory(10)
	retained := c.Compact(context.Background(), testProfile, history)
	c.Wait()

	assert.Equal(t, history, retained)
	assert.Equal(t, 0, provider.ChatCalls())
	assert.Equal(t, "", store.Summary(testProfile.ID))
}

func TestCompactDisabled(t *testing.T) {
	provider := mock.New()
	store := newTestStore()
	c := New(provider, store, nil, Config{MaxHistory: 0, RetainRatio: 0.5})

	history := makeHistory(100)
	retained := c.Compact(context.Background(), testProfile, history)
	c.Wait()

	assert.Equal(t, history, retained)
	assert.Equal(t, 0, provider.ChatCalls())
}

func TestCompactOverflow(t *testing.T) {
	t.Run("returns the retained slice and writes the summary", func(t *testing.T) {
		provider := mock.New(mock.WithDefaultResponse("Aria and the player discussed the missing sister."))
		store := newTestStore()
		c := New(provider, store, nil, Config{MaxHistory: 20, RetainRatio: 0.5, SummaryWordLimit: 150})

		history := makeHistory(24)
		retained := c.Compact(context.Background(), testProfile, history)
		c.Wait()

		// ceil(24*0.5) = 12 summarized, 12 retained.
		require.Len(t, retained, 12)
		assert.Equal(t, "message 12", retained[0].Content)
		assert.Equal(t, "message 23", retained[11].Content)

		assert.Equal(t, 1, provider.ChatCalls())
		assert.Equal(t, "Aria and the player discussed the missing sister.", store.Summary(testProfile.ID))
	})

	t.Run("appends onto an existing summary", func(t *testing.T) {
		provider := mock.New(mock.WithDefaultResponse("Later they argued."))
		store := newTestStore()
		store.SetSummary(testProfile.ID, "They met at the tavern.")
		c := New(provider, store, nil, Config{MaxHistory: 4, RetainRatio: 0.5})

		c.Compact(context.Background(), testProfile, makeHistory(6))
		c.Wait()

		assert.Equal(t, "They met at the tavern.\n\nLater they argued.", store.Summary(testProfile.ID))
	})

	t.Run("summarization failure leaves the summary untouched", func(t *testing.T) {
		provider := mock.New(mock.WithChatError(assert.AnError))
		store := newTestStore()
		c := New(provider, store, nil, Config{MaxHistory: 4, RetainRatio: 0.5})

		retained := c.Compact(context.Background(), testProfile, makeHistory(6))
		c.Wait()

		// The caller still gets the trimmed slice.
		assert.Len(t, retained, 3)
		assert.Equal(t, "", store.Summary(testProfile.ID))
	})

	t.Run("empty summary response is ignored", func(t *testing.T) {
		provider := mock.New(mock.WithDefaultResponse("   "))
		store := newTestStore()
		c := New(provider, store, nil, Config{MaxHistory: 4, RetainRatio: 0.5})

		c.Compact(context.Background(), testProfile, makeHistory(6))
		c.Wait()

		assert.Equal(t, "", store.Summary(testProfile.ID))
	})

	t.Run("extraction runs alongside summarization", func(t *testing.T) {
		provider := mock.New()
		provider.AddCannedResponse("Summarize the following", "A short summary.")
		provider.AddCannedResponse("Extract the key information", "[promise|0.9] The player agreed to help Aria")
		store := newTestStore()
		extractor := NewExtractor(provider, store, llm.DefaultProfile())
		c := New(provider, store, extractor, Config{MaxHistory: 4, RetainRatio: 0.5})

		c.Compact(context.Background(), testProfile, makeHistory(6))
		c.Wait()

		assert.Equal(t, "A short summary.", store.Summary(testProfile.ID))
		assert.Equal(t, 1, store.FactCount(testProfile.ID))
	})

	t.Run("survives caller cancellation", func(t *testing.T) {
		provider := mock.New(mock.WithDefaultResponse("A summary despite cancellation."))
		store := newTestStore()
		c := New(provider, store, nil, Config{MaxHistory: 4, RetainRatio: 0.5})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c.Compact(ctx, testProfile, makeHistory(6))
		c.Wait()

		assert.Equal(t, "A summary despite cancellation.", store.Summary(testProfile.ID))
	})
}

func TestTranscript(t *testing.T) {
	messages := []llm.Message{
		llm.NewMessage(llm.RoleSystem, "system prompt"),
		llm.NewMessage(llm.RoleUser, "hello"),
		llm.NewMessage(llm.RoleAssistant, "well met, traveler"),
		{Role: llm.RoleAssistant, Content: "", ToolCalls: []llm.ToolCall{{ID: "1"}}},
		{Role: llm.RoleTool, Content: "tool output", ToolCallID: "1"},
	}

	got := Transcript(testProfile, messages)
	assert.Equal(t, "Player: hello\nAria: well met, traveler\n", got)
}
