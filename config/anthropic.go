package config

import (
	"net/http"

	"github.com/aschepis/backscratcher/chatjr/llm"
	llmanthropic "github.com/aschepis/backscratcher/chatjr/llm/anthropic"
	"github.com/aschepis/backscratcher/chatjr/transport"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// newAnthropicClient creates an Anthropic chat client for key.
// Requests go through the SDK unless anthropic.use_sdk is false.
func newAnthropicClient(cfg *Config, key *llm.ClientKey, logger zerolog.Logger) (*llm.ChatClient, error) {
	retry, err := cfg.Retry.transportConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Anthropic.SDKEnabled() {
		return llmanthropic.NewChatClient(llmanthropic.Config{
			APIKey:     key.APIKey,
			BaseURL:    key.BaseURL,
			APIVersion: cfg.Anthropic.Version,
			Model:      key.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			Headers:    cfg.Headers,
			Retry:      retry,
		}, logger, llmanthropic.WithHTTPClient(cfg.sdkHTTPClient()))
	}

	tr, err := transport.NewHTTPTransport(
		llmanthropic.NormalizeBaseURL(key.BaseURL),
		cfg.transportOptions(logger)...,
	)
	if err != nil {
		return nil, err
	}
	var next llm.Transport = tr
	if retry != nil {
		next = transport.NewRetrying(tr, *retry, logger)
	}
	return llm.NewChatClient(llm.ClientConfig{
		Provider:   llm.ProviderAnthropic,
		APIKey:     key.APIKey,
		APIVersion: cfg.Anthropic.Version,
		Model:      key.Model,
		MaxTokens:  cfg.Anthropic.MaxTokens,
		Headers:    cfg.Headers,
	}, next, logger)
}

// sdkHTTPClient builds the client the SDK sends with, carrying the
// configured timeout and tracing.
func (c *Config) sdkHTTPClient() *http.Client {
	client := &http.Client{Timeout: c.RequestTimeout()}
	if c.Tracing {
		client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return client
}

// transportOptions returns the HTTPTransport options shared by all providers.
func (c *Config) transportOptions(logger zerolog.Logger) []transport.Option {
	return []transport.Option{
		transport.WithLogger(logger),
		transport.WithTimeout(c.RequestTimeout()),
		transport.WithTracing(c.Tracing),
	}
}
