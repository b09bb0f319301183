package llm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when a provider finishes without producing any text
var ErrEmptyResponse = errors.New("invalid response format from LLM")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider id (e.g. "gpt", "claude", "haley")
	Name() string

	// Complete generates a full response in one call
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream generates a response, delivering text deltas to onToken as they arrive.
	// The returned response holds the accumulated text.
	Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// TokenFunc receives one streamed text delta
type TokenFunc func(delta string)

// Request contains the input for a single LLM call
type Request struct {
	// System carries instructions; providers without a system channel prepend it to User
	System string

	// User is the user prompt
	User string

	// Model overrides the configured model
	Model string

	// Temperature is passed through when > 0
	Temperature float32

	// MaxTokens limits the response length
	MaxTokens int
}

// Response contains the LLM output
type Response struct {
	// Content is the generated text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption when the provider reports it
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Name is the provider id the caller uses ("gpt", "claude", ...). Defaults to Kind.
	Name string

	// Kind selects the implementation: "openai", "anthropic", "ollama", "gemini", "haley"
	Kind string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (Ollama, OpenAI-compatible APIs, the Haley backend)
	BaseURL string

	// Timeout for non-streaming API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// UserID and ConversationID are used by the Haley backend provider
	UserID         string
	ConversationID string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   60,
		MaxTokens: 2000,
	}
}

func (c Config) name(fallback string) string {
	if c.Name != "" {
		return c.Name
	}
	return fallback
}

func (c Config) model(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

// CombinePrompt folds system instructions into a single user prompt for
// providers that accept only one text input
func CombinePrompt(system, user string) string {
	if strings.TrimSpace(system) == "" {
		return user
	}
	return "[System Instructions]\n" + system + "\n\n[User Query]\n" + user
}
