package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/extract"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// Fetcher downloads a post or page that an idea is harvested from
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a fetcher. A nil client gets a 30s default.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	return &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
}

// FetchResult contains the fetched document
type FetchResult struct {
	HTML        string
	Text        string // Visible text of HTML documents, the body otherwise
	ContentType string
	FinalURL    string
}

// Fetch retrieves the document at rawURL, reading at most maxBytes
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	text, err := extract.VisibleText(string(body))
	if err != nil {
		text = string(body)
	}

	return &FetchResult{
		HTML:        string(body),
		Text:        strings.TrimSpace(text),
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, network) with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			fetchSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return nil, lastErr
}

// isRetryableFetchError classifies errors produced by Fetch
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if code, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.HasPrefix(msg, "fetch: ")
}
