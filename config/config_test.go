package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/rs/zerolog"
)

// clearEnv keeps the caller's environment out of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range envOverrides {
		t.Setenv(o.name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 60 {
		t.Errorf("timeout = %d", cfg.Timeout)
	}
	if cfg.Anthropic.Version != llm.DefaultAnthropicVersion || cfg.Anthropic.MaxTokens != llm.DefaultAnthropicMaxTokens {
		t.Errorf("anthropic defaults = %+v", cfg.Anthropic)
	}
	if !cfg.Anthropic.SDKEnabled() {
		t.Error("SDK should be enabled by default")
	}
	if len(cfg.LLMProviders) != 3 {
		t.Errorf("llm_providers = %v", cfg.LLMProviders)
	}
}

func TestLoadMergesFileOntoDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
provider: openai
llm_providers: [ollama]
timeout: 15
headers:
  X-Team: platform
retry:
  max_retries: 2
  initial_interval: 250ms
anthropic:
  model: claude-3-5-haiku-latest
  use_sdk: false
openai:
  api_key: sk-file
  organization: org-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Timeout != 15 {
		t.Errorf("globals = %q %d", cfg.Provider, cfg.Timeout)
	}
	if len(cfg.LLMProviders) != 1 || cfg.LLMProviders[0] != "ollama" {
		t.Errorf("llm_providers = %v", cfg.LLMProviders)
	}
	if cfg.Headers["X-Team"] != "platform" {
		t.Errorf("headers = %v", cfg.Headers)
	}
	// Defaults not named in the file survive the merge.
	if cfg.Anthropic.Version != llm.DefaultAnthropicVersion {
		t.Errorf("anthropic version = %q", cfg.Anthropic.Version)
	}
	if cfg.Anthropic.Model != "claude-3-5-haiku-latest" || cfg.Anthropic.SDKEnabled() {
		t.Errorf("anthropic = %+v", cfg.Anthropic)
	}
	if cfg.OpenAI.APIKey != "sk-file" || cfg.OpenAI.Organization != "org-file" {
		t.Errorf("openai = %+v", cfg.OpenAI)
	}

	retry, err := cfg.Retry.transportConfig()
	if err != nil {
		t.Fatalf("transportConfig: %v", err)
	}
	if retry == nil || retry.MaxRetries != 2 || retry.InitialInterval != 250*time.Millisecond {
		t.Errorf("retry = %+v", retry)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
anthropic:
  api_key: sk-ant-file
ollama:
  host: http://file-host:11434
`)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("OLLAMA_HOST", "http://env-host:11434")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("CHATJR_PROVIDER", "ollama")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-env" {
		t.Errorf("anthropic api key = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Ollama.Host != "http://env-host:11434" {
		t.Errorf("ollama host = %q", cfg.Ollama.Host)
	}
	if cfg.OpenAI.Model != "gpt-4o" || cfg.Provider != "ollama" {
		t.Errorf("openai model = %q provider = %q", cfg.OpenAI.Model, cfg.Provider)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "provider: [unclosed"},
		{"unknown provider", "provider: gemini"},
		{"unknown preference", "llm_providers: [anthropic, bard]"},
		{"bad interval", "retry:\n  max_retries: 1\n  initial_interval: soon"},
		{"negative timeout", "timeout: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Defaults()
	cfg.Provider = "anthropic"
	cfg.Anthropic.APIKey = "sk-ant-saved"
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Provider != "anthropic" || loaded.Anthropic.APIKey != "sk-ant-saved" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CHATJR_CONFIG_PATH", "/etc/chatjr.yaml")
	if got := GetConfigPath(); got != "/etc/chatjr.yaml" {
		t.Errorf("GetConfigPath() = %q", got)
	}

	t.Setenv("CHATJR_CONFIG_PATH", "")
	if got := GetConfigPath(); filepath.Base(got) != "config.yaml" || filepath.Base(filepath.Dir(got)) != ".chatjr" {
		t.Errorf("GetConfigPath() = %q", got)
	}
}

func TestRetryDisabledByDefault(t *testing.T) {
	retry, err := RetryConfig{}.transportConfig()
	if err != nil || retry != nil {
		t.Errorf("expected no retry config, got %+v %v", retry, err)
	}
}

func TestNewChatClientSelectsProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want llm.Provider
	}{
		{
			name: "explicit provider",
			cfg:  Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			want: llm.ProviderOpenAI,
		},
		{
			name: "first configured preference",
			cfg:  Config{LLMProviders: []string{"anthropic", "ollama"}},
			want: llm.ProviderOllama,
		},
		{
			name: "anthropic through the SDK",
			cfg:  Config{LLMProviders: []string{"anthropic"}, Anthropic: AnthropicConfig{APIKey: "sk-ant"}},
			want: llm.ProviderAnthropic,
		},
		{
			name: "anthropic over plain HTTP",
			cfg: Config{LLMProviders: []string{"anthropic"}, Anthropic: AnthropicConfig{
				APIKey: "sk-ant",
				UseSDK: new(bool),
			}},
			want: llm.ProviderAnthropic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewChatClient(&tt.cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewChatClient: %v", err)
			}
			if client.Provider() != tt.want {
				t.Errorf("provider = %s, want %s", client.Provider(), tt.want)
			}
		})
	}
}

func TestNewChatClientErrors(t *testing.T) {
	if _, err := NewChatClient(nil, zerolog.Nop()); err == nil {
		t.Error("expected error for nil config")
	}
	cfg := &Config{Provider: "anthropic"}
	if _, err := NewChatClient(cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unconfigured provider")
	}
	cfg = &Config{LLMProviders: []string{"openai"}}
	if _, err := NewChatClient(cfg, zerolog.Nop()); err == nil {
		t.Error("expected error when no preference is usable")
	}
}

func TestNewChatClientEndToEnd(t *testing.T) {
	var gotTeam string
	var gotBody struct {
		Model string `json:"model"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTeam = r.Header.Get("X-Team")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"qwen2.5","message":{"role":"assistant","content":"pong"},"done":true}`))
	}))
	defer server.Close()

	cfg := &Config{
		Provider: "ollama",
		Model:    "qwen2.5",
		Headers:  map[string]string{"X-Team": "platform"},
		Ollama:   OllamaConfig{Host: server.URL},
	}
	client, err := NewChatClient(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}

	resp, err := client.Chat(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotBody.Model != "qwen2.5" {
		t.Errorf("model override not sent: %q", gotBody.Model)
	}
	if resp.Text() != "pong" {
		t.Errorf("text = %q", resp.Text())
	}
	if gotTeam != "platform" {
		t.Errorf("extra header not sent: %q", gotTeam)
	}
}

func TestAnthropicBaseURLFromEnvironment(t *testing.T) {
	for _, useSDK := range []bool{true, false} {
		t.Run(map[bool]string{true: "sdk", false: "http"}[useSDK], func(t *testing.T) {
			clearEnv(t)
			var gotPath, gotKey, gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("X-Api-Key")
				gotAuth = r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"pong"}],"stop_reason":"end_turn"}`))
			}))
			defer server.Close()

			t.Setenv("ANTHROPIC_BASE_URL", server.URL)
			t.Setenv("ANTHROPIC_AUTH_TOKEN", "env-token")
			t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			cfg.Provider = "anthropic"
			cfg.Anthropic.UseSDK = &useSDK

			client, err := NewChatClient(cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewChatClient: %v", err)
			}
			resp, err := client.Chat(context.Background(), "ping")
			if err != nil {
				t.Fatalf("Chat: %v", err)
			}
			if resp.Text() != "pong" {
				t.Errorf("text = %q", resp.Text())
			}
			if gotPath != "/v1/messages" {
				t.Errorf("path = %q, want /v1/messages", gotPath)
			}
			if gotKey != "sk-ant-env" {
				t.Errorf("api key = %q", gotKey)
			}
			if gotAuth != "" {
				t.Errorf("unexpected Authorization header %q", gotAuth)
			}
		})
	}
}
