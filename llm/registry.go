package llm

import (
	"fmt"

	"github.com/samber/lo"
)

// DefaultOllamaHost is used when no Ollama host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// ClientKey is the resolved configuration for one provider.
type ClientKey struct {
	Provider     Provider
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For Anthropic and OpenAI
	Organization string // For OpenAI
}

// ProviderConfig holds the configuration needed for provider resolution.
// It is filled by the config package so llm does not import it.
type ProviderConfig struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	OllamaHost       string
	OllamaModel      string
	OllamaAPIKey     string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIOrg        string
}

// ProviderRegistry picks a provider from an ordered preference list.
type ProviderRegistry struct {
	enabled []Provider
	config  ProviderConfig
}

// NewProviderRegistry creates a registry. enabledProviders is the preference
// order; unknown tags are rejected.
func NewProviderRegistry(providerConfig ProviderConfig, enabledProviders []string) (*ProviderRegistry, error) {
	enabled := make([]Provider, 0, len(enabledProviders))
	for _, name := range enabledProviders {
		p, err := ParseProvider(name)
		if err != nil {
			return nil, err
		}
		enabled = append(enabled, p)
	}
	return &ProviderRegistry{
		enabled: lo.Uniq(enabled),
		config:  providerConfig,
	}, nil
}

// EnabledProviders returns the preference order.
func (r *ProviderRegistry) EnabledProviders() []Provider {
	return append([]Provider(nil), r.enabled...)
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider Provider) bool {
	return lo.Contains(r.enabled, provider)
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider Provider) bool {
	switch provider {
	case ProviderAnthropic:
		return r.config.AnthropicAPIKey != ""
	case ProviderOllama:
		// Ollama doesn't require API key, just needs host (which has a default)
		return true
	case ProviderOpenAI:
		return r.config.OpenAIAPIKey != ""
	default:
		return false
	}
}

// Resolve returns the ClientKey for preferred, or for the first enabled and
// configured provider when preferred is empty. modelOverride replaces the
// configured model when set.
func (r *ProviderRegistry) Resolve(preferred Provider, modelOverride string) (*ClientKey, error) {
	if preferred != "" {
		if !r.IsProviderConfigured(preferred) {
			return nil, fmt.Errorf("provider %s is not configured", preferred)
		}
		return r.resolveProviderConfig(preferred, modelOverride)
	}

	if len(r.enabled) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	for _, p := range r.enabled {
		if !r.IsProviderConfigured(p) {
			continue
		}
		key, err := r.resolveProviderConfig(p, modelOverride)
		if err != nil {
			continue
		}
		return key, nil
	}
	return nil, fmt.Errorf("no available provider from preferences %v", r.enabled)
}

// resolveProviderConfig resolves provider-specific configuration and returns a ClientKey.
func (r *ProviderRegistry) resolveProviderConfig(provider Provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		if r.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = r.config.AnthropicAPIKey
		key.BaseURL = r.config.AnthropicBaseURL
		if key.Model == "" {
			key.Model = lo.CoalesceOrEmpty(r.config.AnthropicModel, DefaultAnthropicModel)
		}

	case ProviderOllama:
		key.Host = lo.CoalesceOrEmpty(r.config.OllamaHost, DefaultOllamaHost)
		key.APIKey = r.config.OllamaAPIKey
		if key.Model == "" {
			key.Model = lo.CoalesceOrEmpty(r.config.OllamaModel, DefaultOllamaModel)
		}

	case ProviderOpenAI:
		if r.config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = r.config.OpenAIAPIKey
		key.BaseURL = r.config.OpenAIBaseURL
		key.Organization = r.config.OpenAIOrg
		if key.Model == "" {
			key.Model = lo.CoalesceOrEmpty(r.config.OpenAIModel, DefaultOpenAIModel)
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}
