// Package reflection gives actors a periodic private "inner thought" and
// "behavior guidance" pair that biases their following replies.
package reflection

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
)

// Section markers the model is instructed to emit.
const (
	markerKeepUnchanged    = "<<<KEEP_UNCHANGED>>>"
	markerInnerThought     = "<<<INNER_THOUGHT>>>"
	markerBehaviorGuidance = "<<<BEHAVIOR_GUIDANCE>>>"
)

const (
	reflectionSystemPrompt = "You are a role-play assistant. You analyze a character's inner state and plan how they should behave."

	// defaultGuidance substitutes for an unparsable response
	defaultGuidance = "Stay in character and respond to the player naturally."

	// recentHistoryWindow is how many trailing messages feed the prompt
	recentHistoryWindow = 5
)

var sectionRe = regexp.MustCompile(`(?s)<<<INNER_THOUGHT>>>\s*(.+?)\s*<<<BEHAVIOR_GUIDANCE>>>\s*(.+)`)

// Thought is one actor's current reflection record.
type Thought struct {
	// ActorID owns this thought
	ActorID actor.ID

	// InnerThought is a short first-person reading of the situation
	InnerThought string

	// BehaviorGuidance is a short third-person plan for upcoming replies
	BehaviorGuidance string

	// CreatedAt is when the thought was generated
	CreatedAt time.Time

	// TriggerTurnCount is the actor's turn count when this thought was made
	TriggerTurnCount int

	// Lifetime is how many turns the thought stays valid
	Lifetime int

	// UsageCount is how many turns have consumed the thought
	UsageCount int
}

// Valid reports whether the thought may still bias replies.
func (t *Thought) Valid() bool {
	return t != nil && t.UsageCount < t.Lifetime
}

// Config holds reflection cadence settings.
type Config struct {
	// Interval triggers a new reflection every N turns.
	// Zero disables periodic re-triggering beyond the bootstrap thought.
	Interval int `yaml:"interval"`

	// Lifetime is how many turns one thought stays valid.
	Lifetime int `yaml:"lifetime"`

	// Profile supplies generation parameters for reflection calls.
	Profile llm.Profile `yaml:"-"`
}

// DefaultConfig returns the default reflection cadence.
func DefaultConfig() Config {
	return Config{
		Interval: 5,
		Lifetime: 5,
		Profile:  llm.DefaultProfile(),
	}
}

// Engine generates, stores, and expires per-actor thoughts.
type Engine struct {
	provider llm.Provider
	cfg      Config

	mu       sync.Mutex
	thoughts map[actor.ID]*Thought
	turns    map[actor.ID]int
}

// NewEngine creates a reflection engine.
func NewEngine(provider llm.Provider, cfg Config) *Engine {
	if cfg.Lifetime < 1 {
		cfg.Lifetime = DefaultConfig().Lifetime
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Engine{
		provider: provider,
		cfg:      cfg,
		thoughts: make(map[actor.ID]*Thought),
		turns:    make(map[actor.ID]int),
	}
}

// ShouldReflect reports whether the actor needs a fresh thought: first-ever
// turn, no valid thought, or the configured interval has elapsed.
func (e *Engine) ShouldReflect(id actor.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.turns[id]
	if current == 0 {
		return true
	}

	thought := e.thoughts[id]
	if !thought.Valid() {
		return true
	}

	if e.cfg.Interval > 0 && current-thought.TriggerTurnCount >= e.cfg.Interval {
		return true
	}

	return false
}

// Thought returns the actor's current valid thought, or nil.
func (e *Engine) Thought(id actor.ID) *Thought {
	e.mu.Lock()
	defer e.mu.Unlock()
	if thought := e.thoughts[id]; thought.Valid() {
		return thought
	}
	return nil
}

// RecordTurn counts a completed dialogue turn and charges it against the
// current thought's lifetime.
func (e *Engine) RecordTurn(id actor.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns[id]++
	if thought := e.thoughts[id]; thought.Valid() {
		thought.UsageCount++
	}
}

// TurnCount returns how many turns the actor has completed.
func (e *Engine) TurnCount(id actor.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns[id]
}

// Clear drops the actor's thought and turn counter.
func (e *Engine) Clear(id actor.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.thoughts, id)
	delete(e.turns, id)
}

// ClearAll drops every actor's reflection state.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thoughts = make(map[actor.ID]*Thought)
	e.turns = make(map[actor.ID]int)
}

// Reflect generates a new thought for the actor and stores it as the
// current one. A keep-unchanged answer clones the previous thought with a
// refreshed trigger count and reset usage. Parse failures degrade to
// best-effort defaults rather than erroring.
func (e *Engine) Reflect(ctx context.Context, profile actor.Profile, personaPrompt, userMessage string, recentHistory []llm.Message) (*Thought, error) {
	previous := e.Thought(profile.ID)
	prompt := e.buildPrompt(profile, personaPrompt, userMessage, recentHistory, previous)

	req := e.cfg.Profile.NewChatRequest([]llm.Message{
		llm.NewMessage(llm.RoleSystem, reflectionSystemPrompt),
		llm.NewMessage(llm.RoleUser, prompt),
	})

	resp, err := e.provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(resp.Content)
	if result == "" {
		log.Warn("Reflection returned empty content", "actor_id", profile.ID)
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.turns[profile.ID]

	if strings.Contains(result, markerKeepUnchanged) {
		if previous == nil {
			log.Warn("Model kept a previous thought that does not exist", "actor_id", profile.ID)
			return nil, nil
		}
		refreshed := &Thought{
			ActorID:          profile.ID,
			InnerThought:     previous.InnerThought,
			BehaviorGuidance: previous.BehaviorGuidance,
			CreatedAt:        time.Now(),
			TriggerTurnCount: current,
			Lifetime:         e.cfg.Lifetime,
		}
		e.thoughts[profile.ID] = refreshed
		log.Debug("Thought kept unchanged", "actor_id", profile.ID)
		return refreshed, nil
	}

	innerThought, guidance := parseThought(result)
	thought := &Thought{
		ActorID:          profile.ID,
		InnerThought:     innerThought,
		BehaviorGuidance: guidance,
		CreatedAt:        time.Now(),
		TriggerTurnCount: current,
		Lifetime:         e.cfg.Lifetime,
	}
	e.thoughts[profile.ID] = thought

	log.Debug("Thought updated",
		"actor_id", profile.ID,
		"inner_thought", innerThought,
		"guidance", guidance)

	return thought, nil
}

// parseThought splits a response into its two sections. Marker split first,
// then a regex fallback, then the whole text as the inner thought with a
// generic guidance.
func parseThought(result string) (innerThought, guidance string) {
	inner := strings.Index(result, markerInnerThought)
	behavior := strings.Index(result, markerBehaviorGuidance)
	if inner >= 0 && behavior > inner {
		innerThought = strings.TrimSpace(result[inner+len(markerInnerThought) : behavior])
		guidance = strings.TrimSpace(result[behavior+len(markerBehaviorGuidance):])
		if innerThought != "" && guidance != "" {
			return innerThought, guidance
		}
	}

	if m := sectionRe.FindStringSubmatch(result); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}

	log.Warn("Could not parse reflection sections, using whole text as inner thought")
	return strings.TrimSpace(result), defaultGuidance
}

func (e *Engine) buildPrompt(profile actor.Profile, personaPrompt, userMessage string, recentHistory []llm.Message, previous *Thought) string {
	var b strings.Builder

	b.WriteString("Think deeply from the character's first-person point of view.\n\n")

	b.WriteString("[Character setup]\n")
	b.WriteString(personaPrompt)
	b.WriteString("\n\n")

	if previous != nil {
		b.WriteString("[Your previous thinking]\n")
		fmt.Fprintf(&b, "Inner thought: %s\n", previous.InnerThought)
		fmt.Fprintf(&b, "Behavior guidance: %s\n\n", previous.BehaviorGuidance)
	}

	if len(recentHistory) > 0 {
		b.WriteString("[Recent conversation]\n")
		start := len(recentHistory) - recentHistoryWindow
		if start < 0 {
			start = 0
		}
		for _, msg := range recentHistory[start:] {
			switch msg.Role {
			case llm.RoleUser:
				fmt.Fprintf(&b, "Player: %s\n", msg.Content)
			case llm.RoleAssistant:
				if msg.Content != "" {
					fmt.Fprintf(&b, "%s: %s\n", profile.Name, msg.Content)
				}
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("[Current situation]\n")
	fmt.Fprintf(&b, "The player says: %s\n\n", userMessage)

	b.WriteString("[Task]\n")
	if previous != nil {
		b.WriteString("First decide whether your previous thinking still applies:\n")
		b.WriteString("- Has the situation changed significantly?\n")
		b.WriteString("- Does your view of the player need adjusting?\n")
		b.WriteString("- Is the previous behavior plan still suitable?\n")
		b.WriteString("If it still applies, you may keep it unchanged. Otherwise provide new thinking.\n\n")
	}

	b.WriteString("Think in two parts:\n")
	b.WriteString("1. Inner thought (first person): your honest reading of the situation and of the player, under 100 words.\n")
	b.WriteString("2. Behavior guidance (third person): the tone, attitude, and reply length the character plans for the next few turns. Replies stay short and conversational.\n\n")

	b.WriteString("[Output format]\n")
	b.WriteString("Use exactly these markers:\n\n")
	if previous != nil {
		fmt.Fprintf(&b, "To keep the previous thinking unchanged, output only:\n%s\n\n", markerKeepUnchanged)
		b.WriteString("To update it:\n")
	}
	fmt.Fprintf(&b, "%s\n(inner thought here, first person)\n\n", markerInnerThought)
	fmt.Fprintf(&b, "%s\n(behavior guidance here, third person)\n\n", markerBehaviorGuidance)
	b.WriteString("Both sections are required, separated by the markers shown.")

	return b.String()
}
