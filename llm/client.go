package llm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ClientConfig is the explicit configuration of a ChatClient.
type ClientConfig struct {
	Provider Provider
	// APIKey is sent as x-api-key (anthropic) or a bearer token (ollama, openai).
	APIKey string
	// APIVersion is the anthropic-version header. Defaults to DefaultAnthropicVersion.
	APIVersion string
	// Model is the default model; empty means the provider default.
	Model string
	// MaxTokens is the default budget; <= 0 means unset.
	MaxTokens int
	// Headers are merged over the provider headers.
	Headers map[string]string
}

// ChatClient runs one request through build, send, classify and normalize.
// It holds no per-call state and is safe for concurrent use.
type ChatClient struct {
	provider  Provider
	prof      profile
	model     string
	maxTokens int
	headers   map[string]string
	transport Transport
	logger    zerolog.Logger
}

// NewChatClient creates a client for cfg.Provider that sends through transport.
func NewChatClient(cfg ClientConfig, transport Transport, logger zerolog.Logger) (*ChatClient, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	prof, err := lookupProfile(cfg.Provider)
	if err != nil {
		return nil, err
	}
	providerHeaders, err := prof.headers(cfg)
	if err != nil {
		return nil, err
	}

	headers := lo.Assign(
		map[string]string{"content-type": "application/json"},
		providerHeaders,
		cfg.Headers,
	)

	return &ChatClient{
		provider:  cfg.Provider,
		prof:      prof,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		headers:   headers,
		transport: transport,
		logger:    logger.With().Str("component", "llm").Str("provider", string(cfg.Provider)).Logger(),
	}, nil
}

// Provider returns the provider tag the client was built for.
func (c *ChatClient) Provider() Provider {
	return c.provider
}

// Chat sends message as a single user turn.
func (c *ChatClient) Chat(ctx context.Context, message string, opts ...ChatOption) (*ChatResponse, error) {
	req := &ChatRequest{Message: message}
	for _, opt := range opts {
		opt(req)
	}
	return c.Send(ctx, req)
}

// Send runs req and returns either a fully populated response or one of
// *TransportError, *APIError, or *MalformedResponseError.
func (c *ChatClient) Send(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}

	call := *req
	if call.Model == "" {
		call.Model = c.model
	}
	if call.MaxTokens <= 0 {
		call.MaxTokens = c.maxTokens
	}
	if call.MaxTokens > 0 && c.prof.maxTokens == MaxTokensOmitted {
		c.logger.Debug().Int("max_tokens", call.MaxTokens).Msg("max_tokens is not sent to this provider")
	}

	payload, err := BuildPayload(c.provider, call)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.provider, err)
	}

	start := time.Now()
	c.logger.Debug().
		Str("path", c.prof.path).
		Interface("model", payload["model"]).
		Int("tools", len(call.Tools)).
		Msg("Sending chat request")

	tr, err := c.transport.Post(ctx, c.prof.path, payload, maps.Clone(c.headers))
	if err != nil {
		tErr := &TransportError{Provider: c.provider, Path: c.prof.path, Err: err}
		c.logger.Debug().Err(err).Bool("canceled", tErr.Canceled()).Dur("duration", time.Since(start)).Msg("Chat request failed in transport")
		return nil, tErr
	}
	if tr == nil {
		return nil, &TransportError{Provider: c.provider, Path: c.prof.path, Err: errors.New("transport returned no response")}
	}

	c.logger.Debug().
		Int("status", tr.StatusCode).
		Int("body_bytes", len(tr.Body)).
		Dur("duration", time.Since(start)).
		Msg("Received chat response")

	if Classify(tr) == OutcomeSuccess {
		return DecodeChatResponse(c.provider, tr.StatusCode, tr.Body)
	}

	errResp, err := NormalizeError(c.provider, tr.StatusCode, tr.Body)
	if err != nil {
		return nil, err
	}
	return nil, NewAPIError(c.provider, errResp)
}

// Ensure ChatClient implements Chatter
var _ Chatter = (*ChatClient)(nil)
