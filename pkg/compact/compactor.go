// Package compact handles context-overflow for an actor's rolling history:
// the oldest slice is retired into the rolling summary and the long-term
// fact index while the newest slice stays as working context.
package compact

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/convo"
)

const summarizerSystemPrompt = "You are a conversation summarizer. You condense role-play dialogue into short third-person narrative summaries without losing important events."

// Config holds compaction settings.
type Config struct {
	// MaxHistory is the per-actor history cap that triggers compaction.
	// Zero or negative disables compaction.
	MaxHistory int `yaml:"max_history"`

	// RetainRatio in (0,1) is the share of history kept verbatim on
	// overflow; the rest is summarized.
	RetainRatio float64 `yaml:"retain_ratio"`

	// SummaryWordLimit caps the requested summary length.
	SummaryWordLimit int `yaml:"summary_word_limit"`

	// Profile supplies generation parameters for summarization calls.
	Profile llm.Profile `yaml:"-"`
}

// DefaultConfig returns the default compaction settings.
func DefaultConfig() Config {
	return Config{
		MaxHistory:       20,
		RetainRatio:      0.5,
		SummaryWordLimit: 150,
		Profile:          llm.DefaultProfile(),
	}
}

// Compactor splits overflowing history and runs the summarization and
// fact-extraction side effects on detached flows.
type Compactor struct {
	provider  llm.Provider
	store     *convo.Store
	extractor *Extractor
	cfg       Config

	// wg tracks in-flight side effects so tests (and shutdown) can wait
	wg sync.WaitGroup
}

// New creates a Compactor. The extractor may be nil to disable fact
// extraction.
func New(provider llm.Provider, store *convo.Store, extractor *Extractor, cfg Config) *Compactor {
	if cfg.RetainRatio <= 0 || cfg.RetainRatio >= 1 {
		cfg.RetainRatio = DefaultConfig().RetainRatio
	}
	if cfg.SummaryWordLimit <= 0 {
		cfg.SummaryWordLimit = DefaultConfig().SummaryWordLimit
	}
	return &Compactor{
		provider:  provider,
		store:     store,
		extractor: extractor,
		cfg:       cfg,
	}
}

// Compact returns the retained history slice immediately. When the history
// exceeds the cap, the oldest messages are handed to summarization and fact
// extraction on detached goroutines; the caller proceeds with the retained
// slice without waiting for them.
func (c *Compactor) Compact(ctx context.Context, profile actor.Profile, history []llm.Message) []llm.Message {
	if c.cfg.MaxHistory <= 0 || len(history) <= c.cfg.MaxHistory {
		return history
	}

	summarizeCount := SplitPoint(len(history), c.cfg.RetainRatio)

	old := append([]llm.Message(nil), history[:summarizeCount]...)
	retained := history[summarizeCount:]

	log.Debug("Context overflow detected",
		"actor_id", profile.ID,
		"history", len(history),
		"limit", c.cfg.MaxHistory,
		"summarizing", summarizeCount,
		"retaining", len(retained))

	// The side effects outlive the current turn; detach them from the
	// caller's cancellation.
	bg := actor.ContextWithID(context.WithoutCancel(ctx), profile.ID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.summarize(bg, profile, old)
	}()

	if c.extractor != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.extractor.Extract(bg, profile, old); err != nil {
				log.Error("Fact extraction failed", "actor_id", profile.ID, "error", err)
			}
		}()
	}

	return retained
}

// Wait blocks until all in-flight compaction side effects finish.
func (c *Compactor) Wait() {
	c.wg.Wait()
}

// SplitPoint computes how many of the oldest messages to retire for a
// history of the given length: ceil(length*(1-retainRatio)), clamped so at
// least one message is summarized and at least one is retained.
func SplitPoint(length int, retainRatio float64) int {
	count := int(math.Ceil(float64(length) * (1 - retainRatio)))
	if count < 1 {
		count = 1
	}
	if count > length-1 {
		count = length - 1
	}
	return count
}

// summarize condenses the retired messages and appends the result to the
// actor's rolling summary.
func (c *Compactor) summarize(ctx context.Context, profile actor.Profile, old []llm.Message) {
	prompt := c.buildSummaryPrompt(profile, old)

	req := c.cfg.Profile.NewChatRequest([]llm.Message{
		llm.NewMessage(llm.RoleSystem, summarizerSystemPrompt),
		llm.NewMessage(llm.RoleUser, prompt),
	})

	resp, err := c.provider.ChatCompletion(ctx, req)
	if err != nil {
		log.Error("Summarization failed", "actor_id", profile.ID, "error", err)
		return
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		log.Warn("Summarization returned empty content", "actor_id", profile.ID)
		return
	}

	// Appends after an existing summary, sets it otherwise.
	c.store.AppendSummary(profile.ID, summary)
	log.Debug("Updated rolling summary", "actor_id", profile.ID, "words", len(strings.Fields(summary)))
}

func (c *Compactor) buildSummaryPrompt(profile actor.Profile, old []llm.Message) string {
	var b strings.Builder

	b.WriteString("Summarize the following role-play conversation.\n\n")

	if existing := c.store.Summary(profile.ID); existing != "" {
		b.WriteString("Earlier events were already summarized as:\n")
		b.WriteString(existing)
		b.WriteString("\n\n")
	}

	b.WriteString("Conversation to summarize:\n")
	b.WriteString(Transcript(profile, old))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Write a third-person synthesis of at most %d words. ", c.cfg.SummaryWordLimit)
	b.WriteString("Keep promises, decisions, and emotional shifts; drop small talk. ")
	b.WriteString("Do not repeat the earlier summary, only continue it.")

	return b.String()
}

// Transcript renders messages as "Speaker: text" lines, naming the user
// "Player" and the assistant after the actor. System and tool messages are
// omitted.
func Transcript(profile actor.Profile, messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleUser:
			fmt.Fprintf(&b, "Player: %s\n", msg.Content)
		case llm.RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintf(&b, "%s: %s\n", profile.Name, msg.Content)
			}
		}
	}
	return b.String()
}
