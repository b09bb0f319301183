package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haleyos/haley/internal/model"
)

// Engineering is the engineering assistant module. The module keeps
// conversation history server-side, so responses are never cached.
type Engineering struct {
	client *Client
}

// NewEngineering creates an engineering module client
func NewEngineering(client *Client) *Engineering {
	return &Engineering{client: client}
}

// Chat sends one message. With useTools the module may run its tools
// and report them in ToolUses.
func (e *Engineering) Chat(ctx context.Context, message string, useTools bool) (*model.EngineeringResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("message is required")
	}

	action := "chat"
	if useTools {
		action = "chat_with_tools"
	}

	raw, err := e.client.Execute(ctx, "engineering", action, map[string]any{"message": message})
	if err != nil {
		return nil, requestError(err)
	}

	var resp model.EngineeringResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode engineering response: %w", err)
	}
	if !resp.Success {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, errors.New("unknown engineering module error")
	}
	return &resp, nil
}

// ClearHistory drops the module's conversation history
func (e *Engineering) ClearHistory(ctx context.Context) error {
	if _, err := e.client.Execute(ctx, "engineering", "clear_history", map[string]any{}); err != nil {
		return requestError(err)
	}
	return nil
}

func requestError(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("request failed: %s", statusErr.StatusText())
	}
	return err
}
