// Package openai builds chat clients for OpenAI-compatible chat completion APIs.
package openai

import (
	"fmt"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/aschepis/backscratcher/chatjr/transport"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// organizationHeader scopes requests to an OpenAI organization.
const organizationHeader = "OpenAI-Organization"

// DefaultBaseURL returns the public OpenAI API root.
func DefaultBaseURL() string {
	return openai.DefaultConfig("").BaseURL
}

// Config holds what an OpenAI chat client needs.
type Config struct {
	APIKey string
	// BaseURL points at OpenAI or any compatible server. Empty means DefaultBaseURL.
	BaseURL      string
	Model        string
	Organization string
	MaxTokens    int
	Headers      map[string]string
	// Retry enables retries at the transport boundary when set.
	Retry *transport.RetryConfig
}

// NewChatClient creates an llm.ChatClient that posts to chat/completions.
// If apiKey is empty, it will return an error.
func NewChatClient(cfg Config, logger zerolog.Logger, opts ...transport.Option) (*llm.ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	baseURL := lo.CoalesceOrEmpty(cfg.BaseURL, DefaultBaseURL())
	opts = append([]transport.Option{transport.WithLogger(logger)}, opts...)
	tr, err := transport.NewHTTPTransport(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	var next llm.Transport = tr
	if cfg.Retry != nil {
		next = transport.NewRetrying(tr, *cfg.Retry, logger)
	}

	headers := cfg.Headers
	if cfg.Organization != "" {
		headers = lo.Assign(map[string]string{organizationHeader: cfg.Organization}, cfg.Headers)
	}

	return llm.NewChatClient(llm.ClientConfig{
		Provider:  llm.ProviderOpenAI,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Headers:   headers,
	}, next, logger)
}
