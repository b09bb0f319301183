package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/sse"
	"github.com/haleyos/haley/internal/util"
	"go.uber.org/zap"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude models
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	logger       *zap.Logger
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence"`
	Usage        anthropicUsage `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicStreamEvent covers the fields of every streaming event type we read
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Model string         `json:"model"`
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage anthropicUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}

	return &AnthropicProvider{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport}, // Streams are bounded by ctx
		config:       config,
		logger:       logging.OrNop(config.Logger),
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return p.config.name("anthropic")
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	// Minimal completion against the cheapest model
	req := anthropicRequest{
		Model:     "claude-3-5-haiku-20241022",
		MaxTokens: 10,
		Messages: []anthropicMessage{
			{Role: "user", Content: "Hi"},
		},
	}

	_, err := p.makeRequest(ctx, req)
	if err != nil {
		p.logger.Warn("Anthropic API check failed", zap.String("provider", p.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete generates a response using Anthropic's Messages API
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.makeRequest(ctx, p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no content in Anthropic response")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content:    strings.TrimSpace(text.String()),
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Stream generates a response using the Messages API event stream
func (p *AnthropicProvider) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	apiReq := p.buildRequest(req)
	apiReq.Stream = true

	httpResp, err := p.send(ctx, p.streamClient, apiReq)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("Anthropic API error: %w", decodeAnthropicError(httpResp.StatusCode, respBody))
	}

	var (
		content strings.Builder
		usage   anthropicUsage
		model   = apiReq.Model
	)

	reader := sse.NewReader(httpResp.Body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			p.logger.Debug("skipping malformed stream event", zap.String("event", ev.Type), zap.Error(err))
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message.Model != "" {
				model = event.Message.Model
			}
			usage.InputTokens = event.Message.Usage.InputTokens
		case "content_block_delta":
			if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			content.WriteString(event.Delta.Text)
			if onToken != nil {
				onToken(event.Delta.Text)
			}
		case "message_delta":
			usage.OutputTokens = event.Usage.OutputTokens
		case "error":
			return nil, fmt.Errorf("Anthropic stream error: %s - %s", event.Error.Type, event.Error.Message)
		case "message_stop":
			return &Response{
				Content:    content.String(),
				Model:      model,
				TokensUsed: usage.InputTokens + usage.OutputTokens,
			}, nil
		}
	}

	return &Response{
		Content:    content.String(),
		Model:      model,
		TokensUsed: usage.InputTokens + usage.OutputTokens,
	}, nil
}

func (p *AnthropicProvider) buildRequest(req Request) anthropicRequest {
	return anthropicRequest{
		Model:     p.config.model(req, "claude-3-5-sonnet-20241022"),
		MaxTokens: p.config.maxTokens(req),
		System:    req.System,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	}
}

// send posts a request to the Messages API
func (p *AnthropicProvider) send(ctx context.Context, client *http.Client, apiReq anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if apiReq.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return httpResp, nil
}

// makeRequest makes a non-streaming request to the Anthropic API
func (p *AnthropicProvider) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	httpResp, err := p.send(ctx, p.httpClient, apiReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeAnthropicError(httpResp.StatusCode, respBody)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}

func decodeAnthropicError(status int, body []byte) error {
	var apiErr anthropicError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("API error (%d): %s - %s", status, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("API error (%d): %s", status, string(body))
}
