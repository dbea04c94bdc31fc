package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice. Omitted fields keep
// their defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvironmentOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvironmentOverrides applies environment variable overrides.
func applyEnvironmentOverrides(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Provider.OpenAI.APIKey = apiKey
	}

	if baseURL := os.Getenv("NPCMIND_OPENAI_BASE_URL"); baseURL != "" {
		config.Provider.OpenAI.BaseURL = baseURL
	}

	if model := os.Getenv("NPCMIND_CHAT_MODEL"); model != "" {
		config.Provider.OpenAI.ChatModel = model
	}

	if index := os.Getenv("NPCMIND_MEMORY_INDEX"); index != "" {
		config.Memory.Index = index
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	switch strings.ToLower(config.Provider.Type) {
	case "openai":
		if config.Provider.OpenAI.APIKey == "" {
			return fmt.Errorf("api key is required for the openai provider")
		}
	case "mock":
		// No further requirements; the mock provider needs nothing.
	default:
		return fmt.Errorf("unsupported provider type: %s", config.Provider.Type)
	}

	switch strings.ToLower(config.Memory.Index) {
	case "inmemory", "chromem":
	default:
		return fmt.Errorf("unsupported memory index backend: %s", config.Memory.Index)
	}

	if config.Memory.RetainRatio <= 0 || config.Memory.RetainRatio >= 1 {
		return fmt.Errorf("memory retain_ratio must be in (0,1), got %v", config.Memory.RetainRatio)
	}

	if config.Memory.TopK < 1 {
		return fmt.Errorf("memory top_k must be at least 1, got %d", config.Memory.TopK)
	}

	if config.Tools.MaxIterations < 1 {
		return fmt.Errorf("tools max_iterations must be at least 1, got %d", config.Tools.MaxIterations)
	}

	if config.Reflection.Enabled && config.Reflection.Lifetime < 1 {
		return fmt.Errorf("reflection lifetime must be at least 1, got %d", config.Reflection.Lifetime)
	}

	return nil
}
