package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/model"
)

// DefaultOSURL is the HaleyOS API used when none is configured
const DefaultOSURL = "http://localhost:8080"

// OSClient calls the HaleyOS kernel through its user-space operation API
type OSClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSClient creates an OS API client
func NewOSClient(baseURL string, httpClient *http.Client) *OSClient {
	if baseURL == "" {
		baseURL = DefaultOSURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OSClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SendMessage submits a user message as a compute operation
func (c *OSClient) SendMessage(ctx context.Context, message string) (*model.OSOperationResponse, error) {
	req := model.OSOperationRequest{
		Operation: "compute",
		Params: map[string]any{
			"problem": message,
			"context": map[string]any{},
		},
	}
	var resp model.OSOperationResponse
	if err := c.do(ctx, http.MethodPost, "/operation", req, &resp, "OS operation failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteModule runs an operation of a kernel module
func (c *OSClient) ExecuteModule(ctx context.Context, module, operation string, params map[string]any) (*model.OSOperationResponse, error) {
	if params == nil {
		params = map[string]any{}
	}
	req := model.OSOperationRequest{
		Operation: "exec",
		Params: map[string]any{
			"module": module,
			"op":     operation,
			"params": params,
		},
	}
	var resp model.OSOperationResponse
	if err := c.do(ctx, http.MethodPost, "/operation", req, &resp, "Module execution failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryRegistry queries the system registry; an empty query matches everything
func (c *OSClient) QueryRegistry(ctx context.Context, query string) (*model.OSOperationResponse, error) {
	if query == "" {
		query = "*"
	}
	req := model.OSOperationRequest{
		Operation: "query_registry",
		Params:    map[string]any{"query": query},
	}
	var resp model.OSOperationResponse
	if err := c.do(ctx, http.MethodPost, "/operation", req, &resp, "Registry query failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallLLM asks the kernel's adapter layer to run one LLM
func (c *OSClient) CallLLM(ctx context.Context, llm, input, mode string) (map[string]any, error) {
	if mode == "" {
		mode = "default"
	}
	var resp map[string]any
	req := model.LLMRequest{LLM: llm, Input: input, Mode: mode}
	if err := c.do(ctx, http.MethodPost, "/llm", req, &resp, "LLM call failed"); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSystemStatus returns kernel status
func (c *OSClient) GetSystemStatus(ctx context.Context) (*model.SystemStatusResponse, error) {
	var resp model.SystemStatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp, "Status check failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOSInfo returns the OS description
func (c *OSClient) GetOSInfo(ctx context.Context) (*model.OSInfo, error) {
	var resp model.OSInfo
	if err := c.do(ctx, http.MethodGet, "/", nil, &resp, "OS info failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MakeSyscall issues a raw system call
func (c *OSClient) MakeSyscall(ctx context.Context, syscall string, pid int, args, callContext map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if callContext == nil {
		callContext = map[string]any{}
	}
	var resp map[string]any
	req := model.SyscallRequest{Syscall: syscall, PID: pid, Args: args, Context: callContext}
	if err := c.do(ctx, http.MethodPost, "/syscall", req, &resp, "Syscall failed"); err != nil {
		return nil, err
	}
	return resp, nil
}

// do sends a JSON request; non-2xx responses become "<failure>: <code> <status text>"
func (c *OSClient) do(ctx context.Context, method, path string, body, out any, failure string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %d %s", failure, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
