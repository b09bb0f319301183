package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/util"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider implements the Provider interface for OpenAI models and
// OpenAI-compatible APIs (Perplexity, Mistral, xAI)
type OpenAIProvider struct {
	client *openai.Client
	config Config
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", config.name("OpenAI"))
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logging.OrNop(config.Logger),
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.config.name("openai")
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Listing models is the lightest authenticated call
	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.Warn("OpenAI API check failed", zap.String("provider", p.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete generates a response using the Chat Completions API
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := p.buildRequest(req)

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &Response{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// Stream generates a response using the streaming Chat Completions API
func (p *OpenAIProvider) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer func() { _ = stream.Close() }()

	var (
		content strings.Builder
		model   = chatReq.Model
		tokens  int
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("OpenAI stream error: %w", err)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			tokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
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

func (p *OpenAIProvider) buildRequest(req Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	return openai.ChatCompletionRequest{
		Model:       p.config.model(req, openai.GPT4oMini),
		Messages:    messages,
		MaxTokens:   p.config.maxTokens(req),
		Temperature: req.Temperature,
	}
}
