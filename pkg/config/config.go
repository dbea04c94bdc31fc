package config

import (
	"time"

	"github.com/hexfall/npcmind/pkg/log"
)

// Config is the top-level configuration for the dialogue engine.
type Config struct {
	// Provider configures the completion/embedding backend
	Provider ProviderConfig `yaml:"provider"`

	// Memory configures history, summarization, and the fact index
	Memory MemoryConfig `yaml:"memory"`

	// Reflection configures the periodic thought mechanism
	Reflection ReflectionConfig `yaml:"reflection"`

	// Tools configures the function-call loop and Lua tool scripts
	Tools ToolsConfig `yaml:"tools"`

	// Logging configures the logging behavior
	Logging log.Config `yaml:"logging"`
}

// ProviderConfig configures the LLM provider.
type ProviderConfig struct {
	// Type is the provider backend ("openai", "mock")
	Type string `yaml:"type"`

	// OpenAI configures the OpenAI-compatible backend
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures OpenAI integration.
type OpenAIConfig struct {
	// APIKey is the API key
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (proxies, compatible servers)
	BaseURL string `yaml:"base_url"`

	// ChatModel is the default completion model
	ChatModel string `yaml:"chat_model"`

	// EmbeddingModel is the embedding model
	EmbeddingModel string `yaml:"embedding_model"`

	// Temperature controls randomness in generation (0-2)
	Temperature float32 `yaml:"temperature"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `yaml:"max_tokens"`

	// TopP is the nucleus sampling parameter
	TopP float32 `yaml:"top_p"`

	// FrequencyPenalty ranges -2.0 to 2.0
	FrequencyPenalty float32 `yaml:"frequency_penalty"`

	// PresencePenalty ranges -2.0 to 2.0
	PresencePenalty float32 `yaml:"presence_penalty"`

	// RequestTimeout bounds each API call
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MemoryConfig configures the memory system.
type MemoryConfig struct {
	// Enabled toggles the whole memory system (summary + facts)
	Enabled bool `yaml:"enabled"`

	// MaxHistory is the per-actor history cap (0 means unlimited)
	MaxHistory int `yaml:"max_history"`

	// RetainRatio in (0,1) is the share of history kept on overflow
	RetainRatio float64 `yaml:"retain_ratio"`

	// SummaryWordLimit caps the requested summary length
	SummaryWordLimit int `yaml:"summary_word_limit"`

	// TopK is how many long-term facts a turn retrieves
	TopK int `yaml:"top_k"`

	// RetrievalThreshold is the minimum similarity for retrieval
	RetrievalThreshold float32 `yaml:"retrieval_threshold"`

	// DedupThreshold is the replace-on-near-duplicate similarity
	DedupThreshold float32 `yaml:"dedup_threshold"`

	// Index selects the fact index backend ("inmemory", "chromem")
	Index string `yaml:"index"`
}

// ReflectionConfig configures the reflection engine.
type ReflectionConfig struct {
	// Enabled toggles reflection
	Enabled bool `yaml:"enabled"`

	// Interval triggers reflection every N turns (0 means bootstrap only)
	Interval int `yaml:"interval"`

	// Lifetime is how many turns one thought stays valid
	Lifetime int `yaml:"lifetime"`
}

// ToolsConfig configures the function-call loop.
type ToolsConfig struct {
	// MaxIterations caps the tool-call loop per turn
	MaxIterations int `yaml:"max_iterations"`

	// ScriptPaths lists directories of Lua tool scripts to load
	ScriptPaths []string `yaml:"script_paths"`
}

// Default returns a complete default configuration.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Type: "openai",
			OpenAI: OpenAIConfig{
				ChatModel:      "gpt-3.5-turbo",
				EmbeddingModel: "text-embedding-ada-002",
				Temperature:    0.7,
				MaxTokens:      2000,
				TopP:           1.0,
				RequestTimeout: 30 * time.Second,
			},
		},
		Memory: MemoryConfig{
			Enabled:            true,
			MaxHistory:         20,
			RetainRatio:        0.5,
			SummaryWordLimit:   150,
			TopK:               5,
			RetrievalThreshold: 0.7,
			DedupThreshold:     0.95,
			Index:              "inmemory",
		},
		Reflection: ReflectionConfig{
			Enabled:  true,
			Interval: 5,
			Lifetime: 5,
		},
		Tools: ToolsConfig{
			MaxIterations: 5,
		},
		Logging: log.DefaultConfig(),
	}
}
