package llm

import (
	"context"
	"time"
)

// Profile holds per-actor generation parameters. A nil or zero field falls
// back to the provider's configured default.
type Profile struct {
	// Model is the completion model identifier
	Model string `yaml:"model"`

	// Temperature controls randomness in generation (0-2)
	Temperature float32 `yaml:"temperature"`

	// MaxTokens limits the length of the generated response
	MaxTokens int `yaml:"max_tokens"`

	// TopP is the nucleus sampling parameter (0-1)
	TopP float32 `yaml:"top_p"`

	// FrequencyPenalty ranges -2.0 to 2.0
	FrequencyPenalty float32 `yaml:"frequency_penalty"`

	// PresencePenalty ranges -2.0 to 2.0
	PresencePenalty float32 `yaml:"presence_penalty"`

	// RequestTimeout bounds each provider call
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultProfile returns the default generation parameters.
func DefaultProfile() Profile {
	return Profile{
		Temperature:    0.7,
		MaxTokens:      2000,
		TopP:           1.0,
		RequestTimeout: 30 * time.Second,
	}
}

// Merge returns p with zero-valued fields replaced from base.
func (p Profile) Merge(base Profile) Profile {
	out := p
	if out.Model == "" {
		out.Model = base.Model
	}
	if out.Temperature == 0 {
		out.Temperature = base.Temperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = base.MaxTokens
	}
	if out.TopP == 0 {
		out.TopP = base.TopP
	}
	if out.FrequencyPenalty == 0 {
		out.FrequencyPenalty = base.FrequencyPenalty
	}
	if out.PresencePenalty == 0 {
		out.PresencePenalty = base.PresencePenalty
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = base.RequestTimeout
	}
	return out
}

// NewChatRequest builds a ChatRequest carrying the profile's generation
// parameters.
func (p Profile) NewChatRequest(messages []Message) ChatRequest {
	return ChatRequest{
		Model:            p.Model,
		Messages:         messages,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
	}
}

// Provider is the interface for completion and embedding backends.
//
// Every call is a suspension point for the calling flow; implementations
// apply the configured request timeout and surface timeouts and transport
// failures as provider errors.
type Provider interface {
	// ChatCompletion sends an ordered message list (plus optional tool
	// definitions) and returns the generated message or tool-call request.
	ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// CreateEmbedding turns text into a fixed-length float vector.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}
