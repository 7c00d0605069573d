// Package config loads chatjr settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/aschepis/backscratcher/chatjr/transport"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key,omitempty"`    // Anthropic API key
	BaseURL   string `yaml:"base_url,omitempty"`   // Custom base URL (default: official API)
	Version   string `yaml:"version,omitempty"`    // anthropic-version header
	Model     string `yaml:"model,omitempty"`      // Default model name
	MaxTokens int    `yaml:"max_tokens,omitempty"` // Default max_tokens
	UseSDK    *bool  `yaml:"use_sdk,omitempty"`    // Send through the Anthropic SDK (default: true)
}

// SDKEnabled reports whether requests go through the Anthropic SDK.
func (c AnthropicConfig) SDKEnabled() bool {
	return c.UseSDK == nil || *c.UseSDK
}

// OllamaConfig represents configuration for Ollama LLM provider.
type OllamaConfig struct {
	Host   string `yaml:"host,omitempty"`    // Ollama host (default: OLLAMA_HOST or http://localhost:11434)
	Model  string `yaml:"model,omitempty"`   // Default model name
	APIKey string `yaml:"api_key,omitempty"` // Bearer token for hosted proxies
}

// OpenAIConfig represents configuration for OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// RetryConfig enables retries at the transport boundary.
// Retries are off while MaxRetries is zero.
type RetryConfig struct {
	MaxRetries      int    `yaml:"max_retries,omitempty"`
	InitialInterval string `yaml:"initial_interval,omitempty"` // e.g. "500ms", "2s"
}

// Config is the chatjr configuration.
type Config struct {
	// Provider forces a provider. Empty means the first usable one in LLMProviders.
	Provider     string   `yaml:"provider,omitempty"`
	Model        string   `yaml:"model,omitempty"` // Overrides the provider's model
	LLMProviders []string `yaml:"llm_providers,omitempty"`

	Timeout int               `yaml:"timeout,omitempty"` // Request timeout in seconds
	Tracing bool              `yaml:"tracing,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"` // Extra headers sent on every request
	Retry   RetryConfig       `yaml:"retry,omitempty"`

	// LLM provider configurations
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
}

// Defaults returns the configuration used before any file or environment is applied.
func Defaults() Config {
	return Config{
		LLMProviders: []string{string(llm.ProviderAnthropic), string(llm.ProviderOllama), string(llm.ProviderOpenAI)},
		Timeout:      60,
		Anthropic: AnthropicConfig{
			Version:   llm.DefaultAnthropicVersion,
			MaxTokens: llm.DefaultAnthropicMaxTokens,
		},
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via CHATJR_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("CHATJR_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.chatjr/config.yaml"
	}
	return filepath.Join(homeDir, ".chatjr", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load reads the config file at path (if it exists), merges it onto the
// defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		// Merge file config onto defaults
		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"CHATJR_PROVIDER", func(c *Config) *string { return &c.Provider }},
	{"ANTHROPIC_API_KEY", func(c *Config) *string { return &c.Anthropic.APIKey }},
	{"ANTHROPIC_BASE_URL", func(c *Config) *string { return &c.Anthropic.BaseURL }},
	{"OLLAMA_HOST", func(c *Config) *string { return &c.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) *string { return &c.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) *string { return &c.OpenAI.APIKey }},
	{"OPENAI_BASE_URL", func(c *Config) *string { return &c.OpenAI.BaseURL }},
	{"OPENAI_MODEL", func(c *Config) *string { return &c.OpenAI.Model }},
	{"OPENAI_ORG_ID", func(c *Config) *string { return &c.OpenAI.Organization }},
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			*o.field(cfg) = v
		}
	}
}

// Validate checks provider names and the retry settings.
func (c *Config) Validate() error {
	if c.Provider != "" {
		if _, err := llm.ParseProvider(c.Provider); err != nil {
			return fmt.Errorf("invalid provider: %w", err)
		}
	}
	for _, name := range c.LLMProviders {
		if _, err := llm.ParseProvider(name); err != nil {
			return fmt.Errorf("invalid llm_providers entry: %w", err)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if _, err := c.Retry.transportConfig(); err != nil {
		return err
	}
	return nil
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// transportConfig returns nil when retries are disabled.
func (r RetryConfig) transportConfig() (*transport.RetryConfig, error) {
	if r.MaxRetries <= 0 {
		return nil, nil
	}
	rc := transport.DefaultRetryConfig()
	rc.MaxRetries = uint64(r.MaxRetries)
	if r.InitialInterval != "" {
		d, err := time.ParseDuration(r.InitialInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid retry.initial_interval %q: %w", r.InitialInterval, err)
		}
		rc.InitialInterval = d
	}
	return &rc, nil
}

// ProviderConfig converts the configuration for llm.ProviderRegistry.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		AnthropicAPIKey:  c.Anthropic.APIKey,
		AnthropicBaseURL: c.Anthropic.BaseURL,
		AnthropicModel:   c.Anthropic.Model,
		OllamaHost:       c.Ollama.Host,
		OllamaModel:      c.Ollama.Model,
		OllamaAPIKey:     c.Ollama.APIKey,
		OpenAIAPIKey:     c.OpenAI.APIKey,
		OpenAIBaseURL:    c.OpenAI.BaseURL,
		OpenAIModel:      c.OpenAI.Model,
		OpenAIOrg:        c.OpenAI.Organization,
	}
}

// Registry builds the provider registry from LLMProviders.
func (c *Config) Registry() (*llm.ProviderRegistry, error) {
	return llm.NewProviderRegistry(c.ProviderConfig(), c.LLMProviders)
}
