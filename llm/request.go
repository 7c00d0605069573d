package llm

import (
	"fmt"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatRequest is a single-turn request. It is built per call and never reused.
type ChatRequest struct {
	Message string
	// Model falls back to the client default, then the provider default.
	Model string
	// MaxTokens <= 0 means unset.
	MaxTokens int
	Tools     []Tool
}

// ChatOption customizes a ChatRequest built by ChatClient.Chat.
type ChatOption func(*ChatRequest)

// WithModel overrides the model for one call.
func WithModel(model string) ChatOption {
	return func(r *ChatRequest) { r.Model = model }
}

// WithMaxTokens sets the token budget for one call.
func WithMaxTokens(n int) ChatOption {
	return func(r *ChatRequest) { r.MaxTokens = n }
}

// WithTools appends tools to the request.
func WithTools(tools ...Tool) ChatOption {
	return func(r *ChatRequest) { r.Tools = append(r.Tools, tools...) }
}

// BuildPayload assembles the JSON object posted to provider p.
//
// The payload always has model and a single user message. max_tokens follows
// the provider's MaxTokensRule, tools is present only when non-empty, and
// providers that stream by default get stream=false.
func BuildPayload(p Provider, req ChatRequest) (map[string]any, error) {
	prof, err := lookupProfile(p)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = prof.defaultModel
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": string(RoleUser), "content": req.Message},
		},
	}

	switch prof.maxTokens {
	case MaxTokensRequired:
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = prof.defaultMaxTokens
		}
		payload["max_tokens"] = maxTokens
	case MaxTokensOptional:
		if req.MaxTokens > 0 {
			payload["max_tokens"] = req.MaxTokens
		}
	case MaxTokensOmitted:
	}

	if prof.forceNonStreaming {
		payload["stream"] = false
	}

	if len(req.Tools) > 0 {
		// Using loop instead of lo.Map due to error handling requirement
		tools := make([]any, 0, len(req.Tools))
		for i, tool := range req.Tools {
			if tool == nil {
				return nil, fmt.Errorf("tool %d is nil", i)
			}
			shaped, err := tool.ProviderShape(p)
			if err != nil {
				return nil, fmt.Errorf("failed to convert tool %d: %w", i, err)
			}
			tools = append(tools, shaped)
		}
		payload["tools"] = tools
	}

	return payload, nil
}
