package util

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/haleyos/haley/internal/model"
)

// NewHTTPClient builds an HTTP client from the shared HTTP settings.
// A zero timeout leaves the client without an overall deadline, which streaming calls need.
func NewHTTPClient(cfg model.HTTPConfig, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in flag
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}
