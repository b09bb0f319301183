// Package modules talks to the Logic Engine module matrix: the idea
// harvester, engineering assistant and Roblox scene generator.
package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/cache"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/metrics"
	"github.com/haleyos/haley/internal/model"
	"go.uber.org/zap"
)

// Default service URLs
const (
	DefaultMatrixURL      = "https://module-matrix-409495160162.us-central1.run.app"
	DefaultLogicEngineURL = "https://logic-engine-core2-951854392741.us-central1.run.app"
)

// StatusError is returned for non-2xx module responses
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Backend returned %d", e.StatusCode)
}

// StatusText is the HTTP reason phrase of the response
func (e *StatusError) StatusText() string {
	return http.StatusText(e.StatusCode)
}

// Options configures a Client
type Options struct {
	MatrixURL      string
	LogicEngineURL string
	HTTPClient     *http.Client

	// Cache stores successful responses of cacheable calls; nil disables caching
	Cache    cache.Cache
	CacheTTL time.Duration

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Client calls the module matrix and the Logic Engine module proxy
type Client struct {
	matrixURL      string
	logicEngineURL string
	httpClient     *http.Client
	cache          cache.Cache
	cacheTTL       time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewClient creates a module client
func NewClient(opts Options) *Client {
	if opts.MatrixURL == "" {
		opts.MatrixURL = DefaultMatrixURL
	}
	if opts.LogicEngineURL == "" {
		opts.LogicEngineURL = DefaultLogicEngineURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		matrixURL:      strings.TrimSuffix(opts.MatrixURL, "/"),
		logicEngineURL: strings.TrimSuffix(opts.LogicEngineURL, "/"),
		httpClient:     opts.HTTPClient,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		metrics:        opts.Metrics,
		logger:         logging.OrNop(opts.Logger),
	}
}

type executeResponse struct {
	Result json.RawMessage `json:"result"`
}

// Execute runs module.action on the matrix and returns the raw result object
func (c *Client) Execute(ctx context.Context, module, action string, params map[string]any) (json.RawMessage, error) {
	return c.execute(ctx, module, action, params, false)
}

// ExecuteCached is Execute with responses served from and stored in the cache
func (c *Client) ExecuteCached(ctx context.Context, module, action string, params map[string]any) (json.RawMessage, error) {
	return c.execute(ctx, module, action, params, true)
}

func (c *Client) execute(ctx context.Context, module, action string, params map[string]any, cacheable bool) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body := model.ModuleRequest{Module: module, Action: action, Params: params}

	raw, err := c.post(ctx, c.matrixURL+"/matrix/execute_module", "matrix:"+module, action, body, cacheable)
	if err != nil {
		return nil, err
	}

	var resp executeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode module response: %w", err)
	}
	return resp.Result, nil
}

// Proxy posts body to the Logic Engine at /module/<path> and returns the raw response
func (c *Client) Proxy(ctx context.Context, path string, body any, cacheable bool) (json.RawMessage, error) {
	path = strings.Trim(path, "/")
	return c.post(ctx, c.logicEngineURL+"/module/"+path, "proxy:"+path, "", body, cacheable)
}

func (c *Client) post(ctx context.Context, url, target, action string, body any, cacheable bool) (json.RawMessage, error) {
	var key string
	if cacheable && c.cache != nil {
		k, err := cache.RequestKey(target, action, body)
		if err == nil {
			key = k
			if data, ok := c.cache.Get(key); ok {
				c.metrics.CacheLookup(true)
				c.logger.Debug("Module cache hit", zap.String("target", target), zap.String("action", action))
				return data, nil
			}
			c.metrics.CacheLookup(false)
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Module request", zap.String("url", url), zap.String("action", action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("decode module response: invalid JSON")
	}

	if key != "" {
		if err := c.cache.Set(key, respBody, c.cacheTTL); err != nil {
			c.logger.Warn("Module cache write failed", zap.Error(err))
		}
	}

	return respBody, nil
}
