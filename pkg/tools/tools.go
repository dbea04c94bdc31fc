// Package tools manages the functions the model may call during dialogue:
// registration, definition export, argument decoding, and execution policy
// per function category.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hexfall/npcmind/pkg/errors"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
)

// Category determines what happens with a function's result.
type Category int

const (
	// CategoryQuery looks information up; the result feeds back to the
	// model and the conversation continues.
	CategoryQuery Category = iota

	// CategoryAction performs a game action; the result feeds back to the
	// model and the conversation continues.
	CategoryAction

	// CategorySilent executes without the model ever seeing the result.
	// The protocol still requires a tool-result message per call, so a
	// silent function contributes an empty one.
	CategorySilent

	// CategoryTransition feeds its result back for one final utterance,
	// then the dialogue ends and control hands off to the target context.
	CategoryTransition
)

func (c Category) String() string {
	switch c {
	case CategoryQuery:
		return "query"
	case CategoryAction:
		return "action"
	case CategorySilent:
		return "silent"
	case CategoryTransition:
		return "transition"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory maps a string onto a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "query":
		return CategoryQuery, true
	case "action":
		return CategoryAction, true
	case "silent":
		return CategorySilent, true
	case "transition":
		return CategoryTransition, true
	}
	return CategoryQuery, false
}

// policy maps a category to its result handling.
type policy struct {
	feedsResult  bool
	endsDialogue bool
}

var policies = map[Category]policy{
	CategoryQuery:      {feedsResult: true, endsDialogue: false},
	CategoryAction:     {feedsResult: true, endsDialogue: false},
	CategorySilent:     {feedsResult: false, endsDialogue: false},
	CategoryTransition: {feedsResult: true, endsDialogue: true},
}

// Handler executes a function call with decoded arguments.
type Handler func(args Args) (string, error)

// Function is a registered callable.
type Function struct {
	// Name is the unique function name advertised to the model
	Name string

	// Description tells the model what the function does
	Description string

	// Parameters is a JSON-schema-like object describing the arguments
	Parameters any

	// Category selects the result-handling policy
	Category Category

	// Target names the hand-off context for transition functions
	Target string

	// Handler runs the function
	Handler Handler
}

// Result is the outcome of executing one tool call.
type Result struct {
	// Content is the tool-result text (empty for silent functions and on
	// silent success)
	Content string

	// FeedToModel reports whether Content should be visible to the model
	FeedToModel bool

	// EndDialogue reports that the dialogue should end after the model's
	// next plain-text reply
	EndDialogue bool

	// Target is the hand-off context name for transition functions
	Target string
}

// Registry holds registered functions in registration order.
type Registry struct {
	mu    sync.RWMutex
	fns   map[string]Function
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Function)}
}

// Register adds a function. Re-registering a name overwrites the previous
// definition with a warning, matching last-writer-wins registration.
func (r *Registry) Register(fn Function) error {
	if fn.Name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "function has no name")
	}
	if fn.Handler == nil {
		return errors.Wrap(errors.ErrInvalidInput, "function %q has no handler", fn.Name)
	}
	if _, ok := policies[fn.Category]; !ok {
		return errors.Wrap(errors.ErrInvalidInput, "function %q has unknown category %v", fn.Name, fn.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fns[fn.Name]; exists {
		log.Warn("Overwriting registered function", "name", fn.Name)
	} else {
		r.order = append(r.order, fn.Name)
	}
	r.fns[fn.Name] = fn
	return nil
}

// Unregister removes a function by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fns[name]; !ok {
		return
	}
	delete(r.fns, name)
	for i, existing := range r.order {
		if existing == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools exports all functions as definitions for a completion request, in
// registration order.
func (r *Registry) Tools() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		fn := r.fns[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}
	return out
}

// Execute runs one tool call and applies the category policy. Failures—
// unknown function, bad arguments, handler error—become result text fed
// back to the model so the conversation can continue gracefully.
func (r *Registry) Execute(call llm.ToolCall) Result {
	name := call.Function.Name

	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()

	if !ok {
		log.Error("Model requested unknown function", "name", name)
		return Result{
			Content:     fmt.Sprintf("error: no function named %q is available", name),
			FeedToModel: true,
		}
	}

	args, err := DecodeArgs(call.Function.Arguments)
	if err != nil {
		log.Error("Argument decoding failed", "name", name, "error", err)
		return Result{
			Content:     fmt.Sprintf("error: invalid arguments for %q: %v", name, err),
			FeedToModel: true,
		}
	}

	log.Debug("Executing function", "name", name, "category", fn.Category.String())

	content, err := safeCall(fn, args)
	pol := policies[fn.Category]
	if err != nil {
		// ToolExecutionError: converted to result text, never fatal.
		log.Error("Function handler failed", "name", name, "error", err)
		return Result{
			Content:     fmt.Sprintf("error: %s failed: %v", name, err),
			FeedToModel: true,
		}
	}

	result := Result{
		FeedToModel: pol.feedsResult,
		EndDialogue: pol.endsDialogue,
		Target:      fn.Target,
	}
	if pol.feedsResult {
		result.Content = content
	}
	return result
}

// safeCall shields the dispatch boundary from panicking handlers.
func safeCall(fn Function, args Args) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.ErrToolExecution, "handler panicked: %v", r)
		}
	}()
	content, err = fn.Handler(args)
	if err != nil {
		err = errors.Wrap(errors.ErrToolExecution, "%v", err)
	}
	return content, err
}
