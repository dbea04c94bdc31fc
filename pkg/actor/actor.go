package actor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hexfall/npcmind/pkg/llm"
)

// ID is the stable identifier of a conversational actor (NPC).
// Each actor has its own isolated memory state.
type ID string

// Profile holds the persona data used to build an actor's system prompt.
type Profile struct {
	// ID is the unique identifier used for memory management
	ID ID `yaml:"id"`

	// Name is the character's display name
	Name string `yaml:"name"`

	// Background is the character's backstory, history, identity
	Background string `yaml:"background"`

	// Personality describes the character's temperament
	Personality string `yaml:"personality"`

	// SpeakingStyle describes tone, phrasing, and verbal habits
	SpeakingStyle string `yaml:"speaking_style"`

	// Goals are the character's motivations and pursuits
	Goals string `yaml:"goals"`

	// AdditionalInfo holds any extra persona context
	AdditionalInfo string `yaml:"additional_info"`

	// LLM optionally overrides the provider's default generation
	// parameters for this actor.
	LLM *llm.Profile `yaml:"llm,omitempty"`
}

// Validate checks that the profile carries the fields required to start a
// dialogue turn.
func (p Profile) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("actor profile %q has no id", p.Name)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("actor profile %q has no name", p.ID)
	}
	return nil
}

// LoadProfile reads an actor profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile file: %w", err)
	}
	return LoadProfileFromBytes(data)
}

// LoadProfileFromBytes parses an actor profile from YAML bytes.
func LoadProfileFromBytes(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
