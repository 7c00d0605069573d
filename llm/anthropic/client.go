package anthropic

import (
	"fmt"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/aschepis/backscratcher/chatjr/transport"
	"github.com/rs/zerolog"
)

// Config holds what an Anthropic chat client needs.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	MaxTokens  int
	Headers    map[string]string
	// Retry enables retries at the transport boundary when set.
	Retry *transport.RetryConfig
}

// NewChatClient creates an llm.ChatClient for Anthropic that sends through the SDK.
func NewChatClient(cfg Config, logger zerolog.Logger, opts ...Option) (*llm.ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL != "" {
		opts = append([]Option{WithBaseURL(cfg.BaseURL)}, opts...)
	}

	var next llm.Transport = NewSDKTransport(logger, opts...)
	if cfg.Retry != nil {
		next = transport.NewRetrying(next, *cfg.Retry, logger)
	}

	return llm.NewChatClient(llm.ClientConfig{
		Provider:   llm.ProviderAnthropic,
		APIKey:     cfg.APIKey,
		APIVersion: cfg.APIVersion,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		Headers:    cfg.Headers,
	}, next, logger)
}
