package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/util"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
		logger: logging.OrNop(config.Logger),
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return p.config.name("gemini")
}

// IsAvailable checks the key by fetching the configured model
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Models.Get(ctx, p.config.model(Request{}, "gemini-2.0-flash"), nil)
	if err != nil {
		p.logger.Warn("Gemini API check failed", zap.String("provider", p.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete generates a response with a single GenerateContent call
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := p.config.model(req, "gemini-2.0-flash")

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(ctxWithTimeout, model, p.contents(req), p.generateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	return &Response{
		Content:    strings.TrimSpace(resp.Text()),
		Model:      model,
		TokensUsed: geminiTokens(resp),
	}, nil
}

// Stream generates a response with GenerateContentStream
func (p *GeminiProvider) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	model := p.config.model(req, "gemini-2.0-flash")

	var (
		content strings.Builder
		tokens  int
	)
	for chunk, err := range p.client.Models.GenerateContentStream(ctx, model, p.contents(req), p.generateConfig(req)) {
		if err != nil {
			return nil, fmt.Errorf("Gemini stream error: %w", err)
		}
		if n := geminiTokens(chunk); n > 0 {
			tokens = n
		}
		delta := chunk.Text()
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	}

	return &Response{
		Content:    content.String(),
		Model:      model,
		TokensUsed: tokens,
	}, nil
}

func (p *GeminiProvider) contents(req Request) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}
}

func (p *GeminiProvider) generateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.config.maxTokens(req)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	return cfg
}

func geminiTokens(resp *genai.GenerateContentResponse) int {
	if resp == nil || resp.UsageMetadata == nil {
		return 0
	}
	return int(resp.UsageMetadata.TotalTokenCount)
}
