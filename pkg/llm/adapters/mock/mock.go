package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/hexfall/npcmind/pkg/errors"
	"github.com/hexfall/npcmind/pkg/llm"
)

// Call represents a recorded method call on the mock provider.
type Call struct {
	// Method is the name of the method that was called.
	Method string

	// Request is the chat request, for ChatCompletion calls.
	Request llm.ChatRequest

	// Text is the input text, for CreateEmbedding calls.
	Text string
}

// Provider implements llm.Provider with canned responses for tests.
type Provider struct {
	mu sync.Mutex

	// queue holds scripted responses returned in order; once drained the
	// canned/default lookup applies.
	queue []llm.ChatResponse

	// cannedResponses maps prompt substrings to predetermined responses
	cannedResponses map[string]llm.ChatResponse

	// defaultResponse is returned when nothing else matches
	defaultResponse llm.ChatResponse

	// cannedEmbeddings maps text to predetermined embeddings
	cannedEmbeddings map[string][]float32

	// defaultEmbedding is returned when no canned embedding matches
	defaultEmbedding []float32

	// exactMatch switches canned lookup from Contains to equality
	exactMatch bool

	// chatErr / embeddingErr force calls to fail
	chatErr      error
	embeddingErr error

	// calls records every ChatCompletion and CreateEmbedding invocation
	calls []Call
}

// Option configures a mock Provider.
type Option func(*Provider)

// WithDefaultResponse sets the default chat response text.
func WithDefaultResponse(text string) Option {
	return func(p *Provider) {
		p.defaultResponse = llm.ChatResponse{Content: text}
	}
}

// WithDefaultEmbedding sets the default embedding vector.
func WithDefaultEmbedding(embedding []float32) Option {
	return func(p *Provider) {
		p.defaultEmbedding = embedding
	}
}

// WithExactMatch switches canned-response lookup to exact matching.
func WithExactMatch(exact bool) Option {
	return func(p *Provider) {
		p.exactMatch = exact
	}
}

// WithChatError makes every ChatCompletion call fail with err.
func WithChatError(err error) Option {
	return func(p *Provider) {
		p.chatErr = err
	}
}

// WithEmbeddingError makes every CreateEmbedding call fail with err.
func WithEmbeddingError(err error) Option {
	return func(p *Provider) {
		p.embeddingErr = err
	}
}

// New creates a mock Provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		cannedResponses:  make(map[string]llm.ChatResponse),
		defaultResponse:  llm.ChatResponse{Content: "This is a mock response"},
		cannedEmbeddings: make(map[string][]float32),
		defaultEmbedding: []float32{0.1, 0.2, 0.3},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddCannedResponse registers a text response keyed on a prompt fragment.
// The fragment is matched against the content of every message in the request.
func (p *Provider) AddCannedResponse(fragment, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cannedResponses[fragment] = llm.ChatResponse{Content: response}
}

// AddCannedEmbedding registers an embedding for an exact text.
func (p *Provider) AddCannedEmbedding(text string, embedding []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cannedEmbeddings[text] = embedding
}

// EnqueueResponse appends a scripted response returned before any canned or
// default lookup. Useful for tool-call sequences.
func (p *Provider) EnqueueResponse(resp llm.ChatResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, resp)
}

// ChatCompletion implements llm.Provider.
func (p *Provider) ChatCompletion(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Method: "ChatCompletion", Request: req})

	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, errors.Wrap(errors.ErrProvider, "%v", err)
	}
	if p.chatErr != nil {
		return llm.ChatResponse{}, p.chatErr
	}

	if len(p.queue) > 0 {
		resp := p.queue[0]
		p.queue = p.queue[1:]
		return resp, nil
	}

	for fragment, resp := range p.cannedResponses {
		for _, msg := range req.Messages {
			if p.exactMatch {
				if msg.Content == fragment {
					return resp, nil
				}
			} else if strings.Contains(msg.Content, fragment) {
				return resp, nil
			}
		}
	}

	return p.defaultResponse, nil
}

// CreateEmbedding implements llm.Provider.
func (p *Provider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Method: "CreateEmbedding", Text: text})

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrProvider, "%v", err)
	}
	if p.embeddingErr != nil {
		return nil, p.embeddingErr
	}

	if embedding, ok := p.cannedEmbeddings[text]; ok {
		return embedding, nil
	}
	return p.defaultEmbedding, nil
}

// Calls returns a copy of the recorded call history.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// ChatCalls returns the number of recorded ChatCompletion calls.
func (p *Provider) ChatCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Method == "ChatCompletion" {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and scripted responses.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.queue = nil
}
