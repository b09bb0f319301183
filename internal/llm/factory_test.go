package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/haleyos/haley/internal/model"
)

func TestNewProvider_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantType string
		wantErr  string
	}{
		{"openai", Config{Kind: "openai", APIKey: "k"}, "*llm.OpenAIProvider", ""},
		{"gpt alias", Config{Name: "gpt", APIKey: "k"}, "*llm.OpenAIProvider", ""},
		{"mistral compatible", Config{Kind: "mistral", APIKey: "k", BaseURL: "https://api.mistral.ai/v1"}, "*llm.OpenAIProvider", ""},
		{"claude alias", Config{Kind: "claude", APIKey: "k"}, "*llm.AnthropicProvider", ""},
		{"ollama", Config{Kind: "ollama", Model: "llama3.1:8b"}, "*llm.OllamaProvider", ""},
		{"haley", Config{Kind: "haley"}, "*llm.HaleyProvider", ""},
		{"missing key", Config{Kind: "anthropic"}, "", "Anthropic API key is required"},
		{"unknown", Config{Kind: "bard"}, "", "unknown LLM provider: bard"},
		{"empty", Config{}, "", "LLM provider not specified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), tt.config)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("Expected %s, got %s", tt.wantType, got)
			}
		})
	}
}

func TestConfigFromModel_APIKeyEnv(t *testing.T) {
	t.Setenv("HALEY_TEST_KEY", "from-env")

	cfg := model.DefaultConfig()
	cfg.HTTP.HTTPSProxy = "http://proxy:3128"

	c := ConfigFromModel("grok", model.ProviderConfig{
		Kind:      "openai",
		Model:     "grok-2",
		APIKeyEnv: "HALEY_TEST_KEY",
		BaseURL:   "https://api.x.ai/v1",
	}, cfg)

	if c.APIKey != "from-env" {
		t.Errorf("Expected key from env, got %q", c.APIKey)
	}
	if c.Name != "grok" || c.Kind != "openai" {
		t.Errorf("Unexpected name/kind %s/%s", c.Name, c.Kind)
	}
	if c.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("Expected proxy to be carried over, got %q", c.HTTPSProxy)
	}

	// Explicit key wins over the environment
	c = ConfigFromModel("grok", model.ProviderConfig{Kind: "openai", APIKey: "inline", APIKeyEnv: "HALEY_TEST_KEY"}, nil)
	if c.APIKey != "inline" {
		t.Errorf("Expected inline key, got %q", c.APIKey)
	}
}

func TestConfigFromModel_HaleyUsesChatURL(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Backend.ChatURL = "http://chat:9000"

	c := ConfigFromModel("haley", model.ProviderConfig{Kind: "haley"}, cfg)
	if c.BaseURL != "http://chat:9000" {
		t.Errorf("Expected chat URL, got %q", c.BaseURL)
	}
	if c.UserID != cfg.Backend.UserID {
		t.Errorf("Expected user id %q, got %q", cfg.Backend.UserID, c.UserID)
	}
}

func TestRegistry_GetCachesAndRejectsUnknown(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Providers = map[string]model.ProviderConfig{
		"llama": {Kind: "ollama", Model: "llama3.1:8b"},
		"haley": {Kind: "haley"},
	}
	r := NewRegistry(cfg, nil)

	p1, err := r.Get(context.Background(), "LLAMA")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p2, _ := r.Get(context.Background(), "llama")
	if p1 != p2 {
		t.Error("Expected the provider to be created once")
	}
	if p1.Name() != "llama" {
		t.Errorf("Expected provider name llama, got %s", p1.Name())
	}

	_, err = r.Get(context.Background(), "bard")
	if err == nil || !strings.Contains(err.Error(), "configured: haley, llama") {
		t.Errorf("Expected unknown provider error listing ids, got %v", err)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(model.DefaultConfig(), nil)
	stub := &stubProvider{name: "stub"}
	r.Register("Stub", stub)

	p, err := r.Get(context.Background(), "stub")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p != stub {
		t.Error("Expected registered provider")
	}
}
