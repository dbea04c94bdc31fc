package compact

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/convo"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

const (
	extractorSystemPrompt = "You are a memory analyst. You extract key information worth remembering long-term from role-play conversations."

	// noneToken is what the model answers when nothing qualifies
	noneToken = "none"

	// defaultImportance is assigned when a line carries no parsable value
	defaultImportance float32 = 0.6
)

var (
	factLineRe     = regexp.MustCompile(`^\[(\w+)\|([\d.]+)\]\s*(.+)$`)
	numberPrefixRe = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Extractor turns retired conversation slices into long-term facts.
type Extractor struct {
	provider llm.Provider
	store    *convo.Store
	profile  llm.Profile
}

// NewExtractor creates an Extractor using the given generation profile for
// its extraction calls.
func NewExtractor(provider llm.Provider, store *convo.Store, profile llm.Profile) *Extractor {
	return &Extractor{provider: provider, store: store, profile: profile}
}

// Extract asks the model for memorable facts in the retired messages,
// embeds each parsed candidate, and stores them in the actor's long-term
// index. Embedding failures drop the individual line, never the batch.
func (e *Extractor) Extract(ctx context.Context, profile actor.Profile, messages []llm.Message) ([]ltm.Fact, error) {
	prompt := buildExtractionPrompt(profile, messages)

	req := e.profile.NewChatRequest([]llm.Message{
		llm.NewMessage(llm.RoleSystem, extractorSystemPrompt),
		llm.NewMessage(llm.RoleUser, prompt),
	})

	resp, err := e.provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" || strings.EqualFold(content, noneToken) {
		log.Debug("No memorable facts in retired messages", "actor_id", profile.ID)
		return nil, nil
	}

	var facts []ltm.Fact
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.EqualFold(line, noneToken) {
			continue
		}

		factType, importance, factContent, ok := parseFactLine(line)
		if !ok {
			log.Warn("Unparsable fact line", "actor_id", profile.ID, "line", line)
			continue
		}

		embedding, err := e.provider.CreateEmbedding(ctx, factContent)
		if err != nil {
			log.Error("Embedding failed for extracted fact, dropping line",
				"actor_id", profile.ID,
				"content", factContent,
				"error", err)
			continue
		}

		fact := ltm.NewFact(factContent, embedding, factType, importance)
		if err := e.store.AddFact(ctx, profile.ID, fact); err != nil {
			log.Error("Failed to store extracted fact", "actor_id", profile.ID, "error", err)
			continue
		}
		facts = append(facts, fact)
		log.Debug("Extracted fact", "actor_id", profile.ID, "fact", fact.String())
	}

	log.Debug("Fact extraction finished", "actor_id", profile.ID, "facts", len(facts))
	return facts, nil
}

// parseFactLine parses "[type|importance] content". Unknown types fall back
// to fact, unparsable importance to the default; a line without the bracket
// prefix becomes plain fact content with any leading numbering stripped.
func parseFactLine(line string) (ltm.FactType, float32, string, bool) {
	if m := factLineRe.FindStringSubmatch(line); m != nil {
		factType, known := ltm.ParseFactType(strings.ToLower(m[1]))
		if !known {
			log.Warn("Unknown fact type, falling back to fact", "type", m[1])
		}

		importance := defaultImportance
		if v, err := strconv.ParseFloat(m[2], 32); err == nil {
			importance = float32(v)
		}
		if importance < 0 {
			importance = 0
		}
		if importance > 1 {
			importance = 1
		}

		return factType, importance, strings.TrimSpace(m[3]), true
	}

	// Legacy plain-text fallback: strip numbering like "1. " or "2) ".
	cleaned := strings.TrimSpace(numberPrefixRe.ReplaceAllString(line, ""))
	if cleaned == "" {
		return ltm.TypeFact, 0, "", false
	}
	return ltm.TypeFact, defaultImportance, cleaned, true
}

func buildExtractionPrompt(profile actor.Profile, messages []llm.Message) string {
	var b strings.Builder

	b.WriteString("Extract the key information worth remembering long-term from the conversation below.\n\n")

	b.WriteString("Information types:\n")
	b.WriteString("- promise: a promise or agreement\n")
	b.WriteString("- preference: a like, dislike, or preference\n")
	b.WriteString("- relationship: a change in the relationship between characters\n")
	b.WriteString("- fact: an important factual statement or decision\n")
	b.WriteString("- detail: a small detail a person would remember (names, traits)\n\n")

	b.WriteString("Output format:\n")
	b.WriteString("One item per line: [type|importance] statement\n")
	b.WriteString("- type: the best match among the 5 types above\n")
	b.WriteString("- importance: a number between 0.0 and 1.0, higher means more important\n")
	b.WriteString("- statement: one complete declarative sentence, third person, objective\n\n")

	b.WriteString("Examples:\n")
	b.WriteString("[promise|0.9] The player agreed to help Aria find her missing sister\n")
	b.WriteString("[preference|0.7] The player said they enjoy walking in the moonlight\n")
	b.WriteString("[relationship|0.8] The player and Oren are now open enemies\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Only extract information genuinely worth remembering long-term\n")
	b.WriteString("- Skip greetings and ordinary small talk\n")
	fmt.Fprintf(&b, "- If nothing qualifies, reply with the single word %q\n\n", noneToken)

	fmt.Fprintf(&b, "Character: %s\n\n", profile.Name)

	b.WriteString("Conversation:\n")
	b.WriteString(Transcript(profile, messages))
	b.WriteString("\n")
	b.WriteString("Extract the key information now, one item per line:")

	return b.String()
}
