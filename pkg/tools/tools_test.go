package tools

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexfall/npcmind/pkg/llm"
)

func echoHandler(args Args) (string, error) {
	if v, ok := args.String("text"); ok {
		return v, nil
	}
	return "echo", nil
}

func makeCall(name, arguments string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call-1",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"query", "action", "silent", "transition"} {
		c, ok := ParseCategory(s)
		assert.True(t, ok, s)
		assert.Equal(t, s, c.String())
	}

	_, ok := ParseCategory("bogus")
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	t.Run("basic registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{Name: "lookup", Category: CategoryQuery, Handler: echoHandler}))
		assert.Equal(t, 1, r.Len())
		assert.Equal(t, []string{"lookup"}, r.Names())
	})

	t.Run("rejects missing name", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Function{Handler: echoHandler}))
	})

	t.Run("rejects missing handler", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Function{Name: "lookup"}))
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Function{Name: "lookup", Category: Category(42), Handler: echoHandler}))
	})

	t.Run("re-registering overwrites", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{Name: "lookup", Category: CategoryQuery, Handler: func(Args) (string, error) { return "old", nil }}))
		require.NoError(t, r.Register(Function{Name: "lookup", Category: CategoryQuery, Handler: func(Args) (string, error) { return "new", nil }}))

		assert.Equal(t, 1, r.Len())
		result := r.Execute(makeCall("lookup", "{}"))
		assert.Equal(t, "new", result.Content)
	})

	t.Run("unregister", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{Name: "lookup", Category: CategoryQuery, Handler: echoHandler}))
		r.Unregister("lookup")
		assert.Equal(t, 0, r.Len())
		r.Unregister("never-existed")
	})
}

func TestTools(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Function{Name: "zeta", Description: "last alphabetically", Category: CategoryQuery, Handler: echoHandler}))
	require.NoError(t, r.Register(Function{Name: "alpha", Description: "first alphabetically", Category: CategoryQuery, Handler: echoHandler}))

	defs := r.Tools()
	require.Len(t, defs, 2)
	// Registration order, not alphabetical.
	assert.Equal(t, "zeta", defs[0].Function.Name)
	assert.Equal(t, "alpha", defs[1].Function.Name)
	assert.Equal(t, "function", defs[0].Type)

	empty := NewRegistry()
	assert.Nil(t, empty.Tools())
}

func TestExecute(t *testing.T) {
	t.Run("query feeds its result", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "get_time",
			Category: CategoryQuery,
			Handler:  func(Args) (string, error) { return "noon", nil },
		}))

		result := r.Execute(makeCall("get_time", "{}"))
		assert.Equal(t, "noon", result.Content)
		assert.True(t, result.FeedToModel)
		assert.False(t, result.EndDialogue)
	})

	t.Run("action feeds its result", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "give_item",
			Category: CategoryAction,
			Handler:  func(Args) (string, error) { return "gave 1 sword", nil },
		}))

		result := r.Execute(makeCall("give_item", "{}"))
		assert.True(t, result.FeedToModel)
		assert.False(t, result.EndDialogue)
	})

	t.Run("silent hides its result", func(t *testing.T) {
		executed := false
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "record_mood",
			Category: CategorySilent,
			Handler: func(Args) (string, error) {
				executed = true
				return "internal note", nil
			},
		}))

		result := r.Execute(makeCall("record_mood", "{}"))
		assert.True(t, executed)
		assert.Equal(t, "", result.Content)
		assert.False(t, result.FeedToModel)
		assert.False(t, result.EndDialogue)
	})

	t.Run("transition ends the dialogue with a target", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "open_shop",
			Category: CategoryTransition,
			Target:   "shop",
			Handler:  func(Args) (string, error) { return "the shop menu opens", nil },
		}))

		result := r.Execute(makeCall("open_shop", "{}"))
		assert.Equal(t, "the shop menu opens", result.Content)
		assert.True(t, result.FeedToModel)
		assert.True(t, result.EndDialogue)
		assert.Equal(t, "shop", result.Target)
	})

	t.Run("passes decoded arguments", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "greet",
			Category: CategoryQuery,
			Handler: func(args Args) (string, error) {
				name, _ := args.String("name")
				times, _ := args.Int("times")
				return fmt.Sprintf("%s x%d", name, times), nil
			},
		}))

		result := r.Execute(makeCall("greet", `{"name":"Aria","times":2}`))
		assert.Equal(t, "Aria x2", result.Content)
	})

	t.Run("unknown function becomes error text", func(t *testing.T) {
		r := NewRegistry()
		result := r.Execute(makeCall("no_such_fn", "{}"))
		assert.Contains(t, result.Content, "no_such_fn")
		assert.Contains(t, result.Content, "error")
		assert.True(t, result.FeedToModel)
		assert.False(t, result.EndDialogue)
	})

	t.Run("bad arguments become error text", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{Name: "lookup", Category: CategoryQuery, Handler: echoHandler}))

		result := r.Execute(makeCall("lookup", `{"nested":{"a":1}}`))
		assert.Contains(t, result.Content, "error")
		assert.True(t, result.FeedToModel)
	})

	t.Run("handler error becomes error text", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "flaky",
			Category: CategoryTransition,
			Target:   "shop",
			Handler:  func(Args) (string, error) { return "", assert.AnError },
		}))

		result := r.Execute(makeCall("flaky", "{}"))
		assert.Contains(t, result.Content, "error")
		assert.True(t, result.FeedToModel)
		// A failed transition must not end the dialogue.
		assert.False(t, result.EndDialogue)
	})

	t.Run("panicking handler is contained", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Function{
			Name:     "kaboom",
			Category: CategoryQuery,
			Handler:  func(Args) (string, error) { panic("boom") },
		}))

		result := r.Execute(makeCall("kaboom", "{}"))
		assert.Contains(t, result.Content, "error")
		assert.True(t, result.FeedToModel)
	})
}
