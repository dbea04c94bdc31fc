// Package dialogue drives NPC conversation turns: context compaction,
// reflection, prompt assembly, the bounded tool-call loop, and persistence
// of the finished exchange.
package dialogue

import (
	"context"
	"strings"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/compact"
	"github.com/hexfall/npcmind/pkg/errors"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/convo"
	"github.com/hexfall/npcmind/pkg/reflection"
	"github.com/hexfall/npcmind/pkg/tools"
)

// Config holds orchestrator settings.
type Config struct {
	// MemoryEnabled toggles summary compaction and fact retrieval
	MemoryEnabled bool

	// TopK is how many long-term facts each turn retrieves
	TopK int

	// MaxToolIterations caps the tool-call loop per turn
	MaxToolIterations int

	// LogSystemPrompt dumps the assembled system prompt at debug level
	LogSystemPrompt bool

	// Defaults supplies generation parameters when the actor profile has
	// no override
	Defaults llm.Profile
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MemoryEnabled:     true,
		TopK:              5,
		MaxToolIterations: 5,
		Defaults:          llm.DefaultProfile(),
	}
}

// Reply is the outcome of a successful dialogue turn.
type Reply struct {
	// Text is the actor's final utterance
	Text string

	// EndDialogue reports that a transition function fired and the host
	// should close the conversation after showing Text
	EndDialogue bool

	// TransitionTarget names the context to hand off to when EndDialogue
	// is set
	TransitionTarget string
}

// Orchestrator is the top-level dialogue driver. Callers must serialize
// SendMessage calls per actor id; calls for different actors are
// independent.
type Orchestrator struct {
	provider  llm.Provider
	store     *convo.Store
	compactor *compact.Compactor
	reflector *reflection.Engine
	registry  *tools.Registry
	cfg       Config
}

// New creates an Orchestrator. The reflector may be nil to disable
// reflection; the registry may be nil to run without tools.
func New(provider llm.Provider, store *convo.Store, compactor *compact.Compactor, reflector *reflection.Engine, registry *tools.Registry, cfg Config) *Orchestrator {
	if cfg.MaxToolIterations < 1 {
		cfg.MaxToolIterations = DefaultConfig().MaxToolIterations
	}
	if cfg.TopK < 1 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Orchestrator{
		provider:  provider,
		store:     store,
		compactor: compactor,
		reflector: reflector,
		registry:  registry,
		cfg:       cfg,
	}
}

// Store exposes the conversation store for host-side inspection.
func (o *Orchestrator) Store() *convo.Store {
	return o.store
}

// SendMessage runs one full dialogue turn for the actor and returns the
// final reply. On any error nothing is persisted; durable history always
// ends on a completed user/assistant exchange.
func (o *Orchestrator) SendMessage(ctx context.Context, profile actor.Profile, userText string) (Reply, error) {
	if err := profile.Validate(); err != nil {
		return Reply{}, errors.Wrap(errors.ErrInvalidInput, "%v", err)
	}
	if strings.TrimSpace(userText) == "" {
		return Reply{}, errors.Wrap(errors.ErrInvalidInput, "user message is empty")
	}

	ctx = actor.ContextWithID(ctx, profile.ID)

	// Reflection runs before the prompt is assembled so its guidance can
	// bias this turn.
	var thought *reflection.Thought
	if o.reflector != nil {
		if o.reflector.ShouldReflect(profile.ID) {
			personaPrompt := buildPersonaPrompt(profile)
			recent := o.store.History(profile.ID)
			if _, err := o.reflector.Reflect(ctx, profile, personaPrompt, userText, recent); err != nil {
				// A failed reflection costs the turn nothing but bias.
				log.Warn("Reflection failed, continuing without it",
					"actor_id", profile.ID, "error", err)
			}
		}
		thought = o.reflector.Thought(profile.ID)
	}

	// The inner thought rides along in this turn's transcript only.
	finalUserMessage := userText
	if thought != nil && thought.InnerThought != "" {
		finalUserMessage = "[Inner thought: " + thought.InnerThought + "]\n" + userText
	}

	working := append(o.store.History(profile.ID), llm.NewMessage(llm.RoleUser, finalUserMessage))
	if o.cfg.MemoryEnabled && o.compactor != nil {
		working = o.compactor.Compact(ctx, profile, working)
	}

	systemPrompt := o.buildSystemPrompt(ctx, profile, finalUserMessage, thought)
	if o.cfg.LogSystemPrompt {
		log.Debug("Assembled system prompt", "actor_id", profile.ID, "prompt", systemPrompt)
	}

	reply, err := o.completionLoop(ctx, profile, systemPrompt, working)
	if err != nil {
		return Reply{}, err
	}

	// Persist only the stable exchange; intermediate tool traffic stays in
	// the discarded working copy.
	o.store.AddMessage(profile.ID, llm.RoleUser, finalUserMessage)
	o.store.AddMessage(profile.ID, llm.RoleAssistant, reply.Text)

	if o.reflector != nil {
		o.reflector.RecordTurn(profile.ID)
	}

	return reply, nil
}

// completionLoop drives the bounded tool-call loop until the model answers
// with plain text or the iteration cap is hit.
func (o *Orchestrator) completionLoop(ctx context.Context, profile actor.Profile, systemPrompt string, working []llm.Message) (Reply, error) {
	genProfile := o.cfg.Defaults
	if profile.LLM != nil {
		genProfile = profile.LLM.Merge(o.cfg.Defaults)
	}

	var toolDefs []llm.Tool
	if o.registry != nil {
		toolDefs = o.registry.Tools()
	}

	messages := make([]llm.Message, 0, len(working)+1)
	messages = append(messages, llm.NewMessage(llm.RoleSystem, systemPrompt))
	messages = append(messages, working...)

	var endDialogue bool
	var transitionTarget string

	for i := 0; i < o.cfg.MaxToolIterations; i++ {
		req := genProfile.NewChatRequest(messages)
		if len(toolDefs) > 0 {
			req.Tools = toolDefs
			req.ToolChoice = "auto"
		}

		resp, err := o.provider.ChatCompletion(ctx, req)
		if err != nil {
			return Reply{}, err
		}

		if !resp.HasToolCalls() {
			log.Debug("Turn finished", "actor_id", profile.ID, "iterations", i+1)
			return Reply{
				Text:             resp.Content,
				EndDialogue:      endDialogue,
				TransitionTarget: transitionTarget,
			}, nil
		}

		log.Debug("Model requested tools", "actor_id", profile.ID, "calls", len(resp.ToolCalls))

		// The assistant's tool-call request and each result enter the
		// working copy so the next round sees them.
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := tools.Result{FeedToModel: true}
			if o.registry != nil {
				result = o.registry.Execute(call)
			}

			// Every call gets a result message; silent functions
			// contribute an empty one.
			content := ""
			if result.FeedToModel {
				content = result.Content
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})

			if result.EndDialogue {
				endDialogue = true
				transitionTarget = result.Target
			}
		}
	}

	log.Warn("Tool-call loop exceeded cap, aborting turn",
		"actor_id", profile.ID, "cap", o.cfg.MaxToolIterations)
	return Reply{}, errors.Wrap(errors.ErrLoopExceeded, "after %d iterations", o.cfg.MaxToolIterations)
}

// ClearHistory wipes the actor's working history, keeping summary and
// long-term facts.
func (o *Orchestrator) ClearHistory(profile actor.Profile) error {
	if err := profile.Validate(); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, "%v", err)
	}
	o.store.ClearHistory(profile.ID)
	return nil
}

// ClearAllMemory wipes the actor's history, summary, long-term facts, and
// reflection state.
func (o *Orchestrator) ClearAllMemory(ctx context.Context, profile actor.Profile) error {
	if err := profile.Validate(); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, "%v", err)
	}
	if err := o.store.ClearAll(ctx, profile.ID); err != nil {
		return err
	}
	if o.reflector != nil {
		o.reflector.Clear(profile.ID)
	}
	return nil
}
