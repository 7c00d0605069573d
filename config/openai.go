package config

import (
	"github.com/aschepis/backscratcher/chatjr/llm"
	llmopenai "github.com/aschepis/backscratcher/chatjr/llm/openai"
	"github.com/rs/zerolog"
)

// newOpenAIClient creates an OpenAI chat client for key.
func newOpenAIClient(cfg *Config, key *llm.ClientKey, logger zerolog.Logger) (*llm.ChatClient, error) {
	retry, err := cfg.Retry.transportConfig()
	if err != nil {
		return nil, err
	}
	return llmopenai.NewChatClient(llmopenai.Config{
		APIKey:       key.APIKey,
		BaseURL:      key.BaseURL,
		Model:        key.Model,
		Organization: key.Organization,
		Headers:      cfg.Headers,
		Retry:        retry,
	}, logger, cfg.transportOptions(logger)...)
}
