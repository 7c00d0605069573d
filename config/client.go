package config

import (
	"fmt"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/rs/zerolog"
)

// NewChatClient creates a chat client from cfg. When cfg.Provider is empty
// the first enabled and configured provider in cfg.LLMProviders is used.
func NewChatClient(cfg *Config, logger zerolog.Logger) (*llm.ChatClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	var preferred llm.Provider
	if cfg.Provider != "" {
		preferred, err = llm.ParseProvider(cfg.Provider)
		if err != nil {
			return nil, err
		}
	}

	key, err := registry.Resolve(preferred, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider: %w", err)
	}
	logger.Debug().
		Str("provider", key.Provider.String()).
		Str("model", key.Model).
		Msg("Resolved chat provider")

	switch key.Provider {
	case llm.ProviderAnthropic:
		return newAnthropicClient(cfg, key, logger)
	case llm.ProviderOllama:
		return newOllamaClient(cfg, key, logger)
	case llm.ProviderOpenAI:
		return newOpenAIClient(cfg, key, logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", key.Provider)
	}
}
