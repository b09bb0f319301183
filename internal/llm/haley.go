package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haleyos/haley/internal/backend"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/util"
	"go.uber.org/zap"
)

// HaleyProvider routes prompts through the Haley chat backend queue.
// The backend has no system channel, so system instructions are folded into the message.
type HaleyProvider struct {
	config Config
	logger *zap.Logger
}

// NewHaleyProvider creates a provider backed by the chat backend
func NewHaleyProvider(config Config) (*HaleyProvider, error) {
	if config.BaseURL == "" {
		config.BaseURL = backend.DefaultChatURL
	}
	return &HaleyProvider{
		config: config,
		logger: logging.OrNop(config.Logger),
	}, nil
}

// Name returns the provider name
func (p *HaleyProvider) Name() string {
	return p.config.name("haley")
}

// IsAvailable checks that the chat backend answers queue status requests
func (p *HaleyProvider) IsAvailable(ctx context.Context) bool {
	client := p.newClient(nil)
	if _, err := client.GetQueueStatus(ctx); err != nil {
		p.logger.Warn("Haley backend check failed", zap.String("base_url", p.config.BaseURL), zap.Error(err))
		return false
	}
	return true
}

// Complete submits the prompt and waits for the full reply
func (p *HaleyProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.Stream(ctx, req, nil)
}

// Stream submits the prompt and forwards reply tokens as they arrive
func (p *HaleyProvider) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	var (
		mu   sync.Mutex
		sent int
	)
	forward := func(m model.Message) {
		if m.Role != model.RoleAssistant || m.Status == model.StatusFailed {
			return
		}
		mu.Lock()
		if len(m.Content) <= sent {
			mu.Unlock()
			return
		}
		delta := m.Content[sent:]
		sent = len(m.Content)
		mu.Unlock()
		if onToken != nil {
			onToken(delta)
		}
	}

	client := p.newClient(forward)
	defer client.CloseAllStreams()

	submitted, err := client.SubmitMessage(ctx, CombinePrompt(req.System, req.User), backend.SubmitOptions{
		Provider: p.config.model(req, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("haley backend error: %w", err)
	}

	msg, err := client.Wait(ctx, submitted.AssistantMessageID)
	if err != nil {
		return nil, fmt.Errorf("haley backend error: %w", err)
	}
	if msg.Status == model.StatusFailed {
		return nil, fmt.Errorf("haley backend error: %w", errors.New(strings.TrimPrefix(msg.Content, "Error: ")))
	}

	content := msg.Content
	modelUsed := p.Name()
	if msg.Metadata != nil {
		if content == "" {
			content = resultText(msg.Metadata.Result)
		}
		if msg.Metadata.ModelUsed != "" {
			modelUsed = msg.Metadata.ModelUsed
		}
	}

	return &Response{Content: content, Model: modelUsed}, nil
}

func (p *HaleyProvider) newClient(onMessage func(model.Message)) *backend.Client {
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return backend.NewClient(backend.Options{
		BaseURL:        p.config.BaseURL,
		ConversationID: p.config.ConversationID,
		UserID:         p.config.UserID,
		HTTPClient:     util.NewHTTPClient(model.HTTPConfig{HTTPProxy: p.config.HTTPProxy, HTTPSProxy: p.config.HTTPSProxy, NoProxy: p.config.NoProxy}, timeout),
		Logger:         p.logger,
		OnMessage:      onMessage,
		OnError:        func(err error) { p.logger.Debug("haley stream error", zap.Error(err)) },
	})
}

// resultText digs the reply text out of a backend result object:
// result.response, then result.content, then result.content.text
func resultText(result map[string]any) string {
	if result == nil {
		return ""
	}
	if s, ok := result["response"].(string); ok && s != "" {
		return s
	}
	switch c := result["content"].(type) {
	case string:
		return c
	case map[string]any:
		if s, ok := c["text"].(string); ok {
			return s
		}
	}
	return ""
}
