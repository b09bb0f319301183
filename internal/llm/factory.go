package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/haleyos/haley/internal/model"
	"go.uber.org/zap"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	kind := strings.ToLower(config.Kind)
	if kind == "" {
		kind = strings.ToLower(config.Name)
	}

	switch kind {
	case "openai", "gpt", "perplexity", "mistral", "grok":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama", "llama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "haley":
		return NewHaleyProvider(config)

	case "":
		return nil, fmt.Errorf("LLM provider not specified")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini, haley)", config.Kind)
	}
}

// ConfigFromModel converts a provider table entry to llm.Config.
// The API key falls back to the entry's environment variable.
func ConfigFromModel(name string, pc model.ProviderConfig, cfg *model.Config) Config {
	apiKey := pc.APIKey
	if apiKey == "" && pc.APIKeyEnv != "" {
		apiKey = os.Getenv(pc.APIKeyEnv)
	}

	c := Config{
		Name:      name,
		Kind:      pc.Kind,
		Model:     pc.Model,
		APIKey:    apiKey,
		BaseURL:   pc.BaseURL,
		Timeout:   pc.Timeout,
		MaxTokens: pc.MaxTokens,
	}
	if cfg != nil {
		c.HTTPProxy = cfg.HTTP.HTTPProxy
		c.HTTPSProxy = cfg.HTTP.HTTPSProxy
		c.NoProxy = cfg.HTTP.NoProxy
		c.UserID = cfg.Backend.UserID
		if pc.Kind == "haley" && c.BaseURL == "" {
			c.BaseURL = cfg.Backend.ChatURL
		}
	}
	return c
}

// Registry resolves provider ids to providers, creating each one once
type Registry struct {
	cfg    *model.Config
	logger *zap.Logger

	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry creates a registry over the configured provider table
func NewRegistry(cfg *model.Config, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		logger:    logger,
		providers: make(map[string]Provider),
	}
}

// Register installs a ready-made provider under id
func (r *Registry) Register(id string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(id)] = p
}

// Get returns the provider for id
func (r *Registry) Get(ctx context.Context, id string) (Provider, error) {
	id = strings.ToLower(strings.TrimSpace(id))

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[id]; ok {
		return p, nil
	}

	pc, ok := r.cfg.Providers[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (configured: %s)", id, strings.Join(r.IDs(), ", "))
	}

	config := ConfigFromModel(id, pc, r.cfg)
	config.Logger = r.logger
	p, err := NewProvider(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", id, err)
	}
	r.providers[id] = p
	return p, nil
}

// IDs returns the configured provider ids in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.cfg.Providers))
	for id := range r.cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
