package dialogue

import (
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/hexfall/npcmind/pkg/compact"
	"github.com/hexfall/npcmind/pkg/config"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/llm/adapters/mock"
	"github.com/hexfall/npcmind/pkg/llm/adapters/openai"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/convo"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
	"github.com/hexfall/npcmind/pkg/mem/ltm/adapters/chromem"
	"github.com/hexfall/npcmind/pkg/mem/ltm/adapters/inmemory"
	"github.com/hexfall/npcmind/pkg/reflection"
	"github.com/hexfall/npcmind/pkg/tools"
	"github.com/hexfall/npcmind/pkg/tools/luafn"
)

// NewFromConfig builds the full engine graph from configuration: provider,
// conversation store, compactor, reflection engine, and tool registry.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	indexFactory, err := newIndexFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fact index: %w", err)
	}

	store := convo.NewStore(cfg.Memory.MaxHistory, indexFactory)

	defaults := profileFromConfig(cfg.Provider.OpenAI)

	var compactor *compact.Compactor
	if cfg.Memory.Enabled {
		extractor := compact.NewExtractor(provider, store, defaults)
		compactor = compact.New(provider, store, extractor, compact.Config{
			MaxHistory:       cfg.Memory.MaxHistory,
			RetainRatio:      cfg.Memory.RetainRatio,
			SummaryWordLimit: cfg.Memory.SummaryWordLimit,
			Profile:          defaults,
		})
	}

	var reflector *reflection.Engine
	if cfg.Reflection.Enabled {
		reflector = reflection.NewEngine(provider, reflection.Config{
			Interval: cfg.Reflection.Interval,
			Lifetime: cfg.Reflection.Lifetime,
			Profile:  defaults,
		})
	}

	registry := tools.NewRegistry()
	for _, dir := range cfg.Tools.ScriptPaths {
		if err := luafn.LoadDir(dir, registry); err != nil {
			return nil, fmt.Errorf("failed to load tool scripts from %s: %w", dir, err)
		}
	}

	log.Info("Dialogue engine initialized",
		"provider", cfg.Provider.Type,
		"index", cfg.Memory.Index,
		"memory_enabled", cfg.Memory.Enabled,
		"reflection_enabled", cfg.Reflection.Enabled,
		"tools", registry.Len())

	return New(provider, store, compactor, reflector, registry, Config{
		MemoryEnabled:     cfg.Memory.Enabled,
		TopK:              cfg.Memory.TopK,
		MaxToolIterations: cfg.Tools.MaxIterations,
		Defaults:          defaults,
	}), nil
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider.Type {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.Provider.OpenAI.APIKey,
			BaseURL:        cfg.Provider.OpenAI.BaseURL,
			ChatModel:      cfg.Provider.OpenAI.ChatModel,
			EmbeddingModel: cfg.Provider.OpenAI.EmbeddingModel,
			RequestTimeout: cfg.Provider.OpenAI.RequestTimeout,
		})
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider.Type)
	}
}

func newIndexFactory(cfg *config.Config) (ltm.Factory, error) {
	ltmCfg := ltm.Config{
		RetrievalThreshold: cfg.Memory.RetrievalThreshold,
		DedupThreshold:     cfg.Memory.DedupThreshold,
	}

	switch cfg.Memory.Index {
	case "inmemory":
		return inmemory.Factory(ltmCfg), nil
	case "chromem":
		return chromem.Factory(chromemgo.NewDB(), ltmCfg), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Memory.Index)
	}
}

func profileFromConfig(c config.OpenAIConfig) llm.Profile {
	profile := llm.DefaultProfile()
	if c.ChatModel != "" {
		profile.Model = c.ChatModel
	}
	if c.Temperature > 0 {
		profile.Temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		profile.MaxTokens = c.MaxTokens
	}
	if c.TopP > 0 {
		profile.TopP = c.TopP
	}
	profile.FrequencyPenalty = c.FrequencyPenalty
	profile.PresencePenalty = c.PresencePenalty
	if c.RequestTimeout > 0 {
		profile.RequestTimeout = c.RequestTimeout
	}
	return profile
}
