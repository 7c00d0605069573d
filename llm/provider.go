package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Provider identifies which wire-shape rules apply to a call.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

const (
	DefaultAnthropicModel     = "claude-3-7-sonnet-20250219"
	DefaultAnthropicMaxTokens = 1024
	DefaultAnthropicVersion   = "2023-06-01"
	DefaultOllamaModel        = "llama3.2"
	DefaultOpenAIModel        = "gpt-4o-mini"
)

// MaxTokensRule describes how a provider treats the max_tokens budget.
type MaxTokensRule int

const (
	// MaxTokensOmitted never sends max_tokens.
	MaxTokensOmitted MaxTokensRule = iota
	// MaxTokensOptional sends max_tokens only when the caller set one.
	MaxTokensOptional
	// MaxTokensRequired always sends max_tokens, falling back to the provider default.
	MaxTokensRequired
)

// profile is the per-provider row of the dispatch table.
type profile struct {
	path              string
	defaultModel      string
	defaultMaxTokens  int
	maxTokens         MaxTokensRule
	forceNonStreaming bool
	headers           func(cfg ClientConfig) (map[string]string, error)
	parseError        func(status int, body []byte) (*ErrorResponse, error)
	decode            func(fields map[string]json.RawMessage, resp *ChatResponse) error
}

var profiles = map[Provider]profile{
	ProviderAnthropic: {
		path:             "messages",
		defaultModel:     DefaultAnthropicModel,
		defaultMaxTokens: DefaultAnthropicMaxTokens,
		maxTokens:        MaxTokensRequired,
		headers:          anthropicHeaders,
		parseError:       parseNestedError,
		decode:           decodeAnthropic,
	},
	ProviderOllama: {
		path:              "chat",
		defaultModel:      DefaultOllamaModel,
		maxTokens:         MaxTokensOmitted,
		forceNonStreaming: true,
		headers:           ollamaHeaders,
		parseError:        parseFlatError,
		decode:            decodeOllama,
	},
	ProviderOpenAI: {
		path:         "chat/completions",
		defaultModel: DefaultOpenAIModel,
		maxTokens:    MaxTokensOptional,
		headers:      openAIHeaders,
		parseError:   parseOpenAIError,
		decode:       decodeOpenAI,
	},
}

func lookupProfile(p Provider) (profile, error) {
	prof, ok := profiles[p]
	if !ok {
		return profile{}, fmt.Errorf("unknown provider: %q", string(p))
	}
	return prof, nil
}

// ParseProvider converts a configuration string into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, err := lookupProfile(p); err != nil {
		return "", err
	}
	return p, nil
}

// Providers returns every supported provider tag in sorted order.
func Providers() []Provider {
	out := make([]Provider, 0, len(profiles))
	for p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether p is a supported provider tag.
func (p Provider) Valid() bool {
	_, ok := profiles[p]
	return ok
}

// Path returns the request path relative to the provider base URL.
func (p Provider) Path() string {
	return profiles[p].path
}

// DefaultModel returns the model used when a request does not name one.
func (p Provider) DefaultModel() string {
	return profiles[p].defaultModel
}

// MaxTokens returns the provider's max_tokens rule.
func (p Provider) MaxTokens() MaxTokensRule {
	return profiles[p].maxTokens
}

func (p Provider) String() string {
	return string(p)
}

func anthropicHeaders(cfg ClientConfig) (map[string]string, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAnthropicVersion
	}
	return map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": version,
	}, nil
}

func ollamaHeaders(cfg ClientConfig) (map[string]string, error) {
	// Local Ollama needs no credentials; hosted proxies take a bearer token.
	if cfg.APIKey == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}, nil
}

func openAIHeaders(cfg ClientConfig) (map[string]string, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}, nil
}
