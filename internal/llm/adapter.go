package llm

import (
	"context"
	"strings"
)

// Call is a single-shot text completion used by pipeline stages
type Call func(ctx context.Context, system, user string, temperature float32) (string, error)

// NewCall adapts a provider to Call. Streamed text wins; the final response
// content is used only when nothing was streamed.
func NewCall(p Provider) Call {
	return func(ctx context.Context, system, user string, temperature float32) (string, error) {
		var streamed strings.Builder
		resp, err := p.Stream(ctx, Request{
			System:      system,
			User:        user,
			Temperature: temperature,
		}, func(delta string) {
			streamed.WriteString(delta)
		})
		if err != nil {
			return "", err
		}

		if strings.TrimSpace(streamed.String()) != "" {
			return streamed.String(), nil
		}
		if resp != nil && strings.TrimSpace(resp.Content) != "" {
			return resp.Content, nil
		}
		return "", ErrEmptyResponse
	}
}
