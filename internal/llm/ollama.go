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
	"github.com/haleyos/haley/internal/util"
	"go.uber.org/zap"
)

// OllamaProvider implements the Provider interface for Ollama local models
type OllamaProvider struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	logger       *zap.Logger
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`

	// Token counts (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second // Local models are slow to load
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}

	return &OllamaProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		config:       config,
		logger:       logging.OrNop(config.Logger),
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return p.config.name("ollama")
}

// IsAvailable checks if the Ollama server is running
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn("Ollama availability check failed", zap.String("stage", "request"), zap.Error(err))
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("Ollama availability check failed", zap.String("base_url", p.baseURL), zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Ollama availability check failed", zap.String("base_url", p.baseURL), zap.Int("status", resp.StatusCode))
		return false
	}

	return true
}

// Complete generates a response using Ollama's local models
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.send(ctx, p.httpClient, apiReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	content := strings.TrimSpace(resp.Response)
	return &Response{
		Content:    content,
		Model:      resp.Model,
		TokensUsed: ollamaTokens(resp, apiReq.Prompt, content),
	}, nil
}

// Stream generates a response from Ollama's newline-delimited JSON stream
func (p *OllamaProvider) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	apiReq.Stream = true

	httpResp, err := p.send(ctx, p.streamClient, apiReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var (
		content strings.Builder
		last    ollamaResponse
	)

	decoder := json.NewDecoder(httpResp.Body)
	for {
		var chunk ollamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("ollama stream error: %s", chunk.Error)
		}
		if chunk.Response != "" {
			content.WriteString(chunk.Response)
			if onToken != nil {
				onToken(chunk.Response)
			}
		}
		last = chunk
		if chunk.Done {
			break
		}
	}

	return &Response{
		Content:    content.String(),
		Model:      last.Model,
		TokensUsed: ollamaTokens(last, apiReq.Prompt, content.String()),
	}, nil
}

func (p *OllamaProvider) buildRequest(req Request) (ollamaRequest, error) {
	model := p.config.model(req, "")
	if model == "" {
		return ollamaRequest{}, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	return ollamaRequest{
		Model:  model,
		Prompt: req.User,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  p.config.maxTokens(req),
		},
	}, nil
}

// send posts to /api/generate and checks the status
func (p *OllamaProvider) send(ctx context.Context, client *http.Client, apiReq ollamaRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	return httpResp, nil
}

// ollamaTokens uses reported counts, or estimates 1 token per 4 characters
func ollamaTokens(resp ollamaResponse, prompt, content string) int {
	if n := resp.PromptEvalCount + resp.EvalCount; n > 0 {
		return n
	}
	return (len(prompt) + len(content)) / 4
}
