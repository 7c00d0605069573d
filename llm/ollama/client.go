// Package ollama builds chat clients for a local or remote Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/aschepis/backscratcher/chatjr/transport"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/rs/zerolog"
)

// Config holds what an Ollama chat client needs.
type Config struct {
	// Host is the server root. Empty means OLLAMA_HOST or the local default.
	Host      string
	Model     string
	APIKey    string
	MaxTokens int
	Headers   map[string]string
	// Retry enables retries at the transport boundary when set.
	Retry *transport.RetryConfig
}

// ResolveHost returns the server root for host.
// If host is empty, it will use the default from environment (OLLAMA_HOST or http://127.0.0.1:11434).
func ResolveHost(host string) (*url.URL, error) {
	if strings.TrimSpace(host) == "" {
		return envconfig.Host(), nil
	}
	u, err := parseHost(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	return u, nil
}

// BaseURL returns the API root that request paths are resolved against.
func BaseURL(host string) (string, error) {
	u, err := ResolveHost(host)
	if err != nil {
		return "", err
	}
	return u.JoinPath("api").String(), nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	u, err := url.Parse(strings.TrimSuffix(host, "/"))
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", host)
	}
	return u, nil
}

// NewChatClient creates an llm.ChatClient that posts to the Ollama chat endpoint.
func NewChatClient(cfg Config, logger zerolog.Logger, opts ...transport.Option) (*llm.ChatClient, error) {
	baseURL, err := BaseURL(cfg.Host)
	if err != nil {
		return nil, err
	}

	opts = append([]transport.Option{transport.WithLogger(logger)}, opts...)
	tr, err := transport.NewHTTPTransport(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	var next llm.Transport = tr
	if cfg.Retry != nil {
		next = transport.NewRetrying(tr, *cfg.Retry, logger)
	}

	return llm.NewChatClient(llm.ClientConfig{
		Provider:  llm.ProviderOllama,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Headers:   cfg.Headers,
	}, next, logger)
}

// Ping checks that the server at host is reachable and returns its version.
func Ping(ctx context.Context, host string, httpClient *http.Client) (string, error) {
	u, err := ResolveHost(host)
	if err != nil {
		return "", err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := api.NewClient(u, httpClient)
	if err := client.Heartbeat(ctx); err != nil {
		return "", fmt.Errorf("ollama at %s is not reachable: %w", u, err)
	}
	version, err := client.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get ollama version: %w", err)
	}
	return version, nil
}
