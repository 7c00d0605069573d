package config

import (
	"github.com/aschepis/backscratcher/chatjr/llm"
	llmollama "github.com/aschepis/backscratcher/chatjr/llm/ollama"
	"github.com/rs/zerolog"
)

// newOllamaClient creates an Ollama chat client for key.
func newOllamaClient(cfg *Config, key *llm.ClientKey, logger zerolog.Logger) (*llm.ChatClient, error) {
	retry, err := cfg.Retry.transportConfig()
	if err != nil {
		return nil, err
	}
	return llmollama.NewChatClient(llmollama.Config{
		Host:    key.Host,
		Model:   key.Model,
		APIKey:  key.APIKey,
		Headers: cfg.Headers,
		Retry:   retry,
	}, logger, cfg.transportOptions(logger)...)
}
