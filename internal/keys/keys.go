// Package keys checks that provider API keys are accepted by their services.
package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"go.uber.org/zap"
)

// ErrServiceRequired is returned when no service is named
var ErrServiceRequired = errors.New("service is required")

// Endpoint is how a service's key is probed
type Endpoint struct {
	URL     string
	Method  string
	Headers func(key string) map[string]string
	Body    []byte
}

// DefaultEndpoints returns the probe endpoint of each known service
func DefaultEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		"openai": {
			URL:    "https://api.openai.com/v1/models",
			Method: http.MethodGet,
			Headers: func(key string) map[string]string {
				return map[string]string{"Authorization": "Bearer " + key}
			},
		},
		"anthropic": {
			URL:    "https://api.anthropic.com/v1/messages",
			Method: http.MethodPost,
			Headers: func(key string) map[string]string {
				return map[string]string{
					"x-api-key":         key,
					"anthropic-version": "2023-06-01",
					"content-type":      "application/json",
				}
			},
			Body: []byte(`{"model":"claude-3-haiku-20240307","max_tokens":1,"messages":[{"role":"user","content":"test"}]}`),
		},
		"replicate": {
			URL:    "https://api.replicate.com/v1/predictions",
			Method: http.MethodGet,
			Headers: func(key string) map[string]string {
				return map[string]string{"Authorization": "Token " + key}
			},
		},
		"elevenlabs": {
			URL:    "https://api.elevenlabs.io/v1/user",
			Method: http.MethodGet,
			Headers: func(key string) map[string]string {
				return map[string]string{"xi-api-key": key}
			},
		},
		"stability": {
			URL:    "https://api.stability.ai/v1/user/account",
			Method: http.MethodGet,
			Headers: func(key string) map[string]string {
				return map[string]string{"Authorization": "Bearer " + key}
			},
		},
	}
}

// Result is the outcome of a connection test
type Result struct {
	Service    string `json:"service"`
	Success    bool   `json:"success"`
	Demo       bool   `json:"demo,omitempty"` // No key was given, nothing was sent
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Tester probes service endpoints with API keys
type Tester struct {
	endpoints  map[string]Endpoint
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTester creates a tester. Nil endpoints means DefaultEndpoints.
func NewTester(endpoints map[string]Endpoint, httpClient *http.Client, logger *zap.Logger) *Tester {
	if endpoints == nil {
		endpoints = DefaultEndpoints()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Tester{endpoints: endpoints, httpClient: httpClient, logger: logging.OrNop(logger)}
}

// Services lists the services that have a probe endpoint
func (t *Tester) Services() []string {
	names := make([]string, 0, len(t.endpoints))
	for name := range t.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Test checks apiKey against service. Only a missing service is an error;
// everything else is reported in the Result.
func (t *Tester) Test(ctx context.Context, service, apiKey string) (Result, error) {
	service = strings.ToLower(strings.TrimSpace(service))
	if service == "" {
		return Result{}, ErrServiceRequired
	}
	if apiKey == "" {
		return Result{Service: service, Success: true, Demo: true}, nil
	}

	endpoint, ok := t.endpoints[service]
	if !ok {
		return Result{Service: service, Success: true, Message: "No test endpoint available"}, nil
	}

	status, err := t.probe(ctx, endpoint, apiKey)
	if err != nil {
		t.logger.Warn("Connection test failed", zap.String("service", service), zap.Error(err))
		return Result{Service: service, Error: "Connection test failed"}, nil
	}

	result := Result{Service: service, StatusCode: status}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		result.Error = "Invalid API key"
	case status >= 200 && status < 300, status == http.StatusBadRequest:
		// 400 means the request was rejected after authentication
		result.Success = true
	default:
		result.Error = fmt.Sprintf("Service returned %d", status)
	}
	return result, nil
}

func (t *Tester) probe(ctx context.Context, endpoint Endpoint, apiKey string) (int, error) {
	method := endpoint.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if endpoint.Body != nil {
		body = bytes.NewReader(endpoint.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if endpoint.Headers != nil {
		for k, v := range endpoint.Headers(apiKey) {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
