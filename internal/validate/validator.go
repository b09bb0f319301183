package validate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

const cancelledError = "context cancelled"

// Validator checks that data sources are reachable and rates their risk
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	authority  *AuthorityClassifier
	logger     *zap.Logger
}

// NewValidator creates a new validator. A nil client gets a 10s default.
func NewValidator(client *http.Client, maxWorkers int, authConfig *model.AuthorityConfig, logger *zap.Logger) *Validator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	return &Validator{
		httpClient: client,
		maxWorkers: maxWorkers,
		userAgent:  model.DefaultConfig().HTTP.UserAgent,
		authority:  NewAuthorityClassifier(authConfig),
		logger:     logging.OrNop(logger),
	}
}

// Validate checks every source concurrently and returns copies with
// authority, risk level and status filled in. Sources left unchecked when
// ctx is cancelled stay pending.
func (v *Validator) Validate(ctx context.Context, sources []model.Source) []model.Source {
	out := make([]model.Source, len(sources))
	if len(sources) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(v.maxWorkers)

	for i, src := range sources {
		g.Go(func() error {
			result := v.Check(ctx, src.URL)
			src.Authority = result.Authority
			src.RiskLevel = result.Authority.RiskLevel()
			src.Status = result.Status()
			out[i] = src
			return nil
		})
	}
	_ = g.Wait()

	v.logger.Debug("Validated sources", zap.Int("count", len(sources)))
	return out
}

// Check validates a single URL, retrying transient failures
func (v *Validator) Check(ctx context.Context, rawURL string) model.ValidationResult {
	var result model.ValidationResult
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkOnce(ctx, rawURL)
		if !isRetryableValidationResult(result) {
			return result
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			validateSleepFunc(backoff)
		}
	}
	return result
}

func (v *Validator) checkOnce(ctx context.Context, rawURL string) model.ValidationResult {
	result := model.ValidationResult{
		URL:       rawURL,
		Authority: v.authority.Classify(rawURL),
	}

	if ctx.Err() != nil {
		result.Error = cancelledError
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.IsDead = true
		return result
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			result.Error = cancelledError
			return result
		}
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.IsAccessible = true
	} else if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != rawURL {
		result.RedirectURL = final
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := time.Parse(time.RFC1123, lastModified); err == nil {
			result.LastModified = &t
		}
	}

	return result
}

// isRetryableValidationResult returns true for results that indicate transient failures
func isRetryableValidationResult(result model.ValidationResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" && result.Error != cancelledError {
		return isRetryableNetworkError(result.Error)
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
