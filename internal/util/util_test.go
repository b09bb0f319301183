package util

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/haleyos/haley/internal/model"
)

func TestNewProxyFunc_Environment(t *testing.T) {
	fn := NewProxyFunc("", "", "")
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := fn(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443", "")

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/models", nil)
	u, err := fn(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Host != "secure-proxy:8443" {
		t.Errorf("expected https proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://localhost:8081/chat/submit", nil)
	u, err = fn(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v", u)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "", "localhost, .internal.example")

	tests := []struct {
		url    string
		bypass bool
	}{
		{"http://localhost:8081/chat", true},
		{"http://api.internal.example/x", true},
		{"http://internal.example/x", true},
		{"http://example.com/x", false},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
		u, err := fn(req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.url, err)
		}
		if (u == nil) != tt.bypass {
			t.Errorf("%s: bypass = %v, want %v", tt.url, u == nil, tt.bypass)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(model.HTTPConfig{InsecureTLS: true}, 5*time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected insecure TLS to be enabled")
	}
}

func TestNewConversationID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewConversationID(now)

	re := regexp.MustCompile(`^conv_1700000000123_[0-9a-z]{9}$`)
	if !re.MatchString(id) {
		t.Errorf("unexpected conversation id format: %s", id)
	}
	if other := NewConversationID(now); other == id {
		t.Errorf("expected distinct ids, got %s twice", id)
	}
}

func TestNewModuleID(t *testing.T) {
	if id := NewModuleID(); !regexp.MustCompile(`^mod_[0-9a-z]{9}$`).MatchString(id) {
		t.Errorf("unexpected module id: %s", id)
	}
	if NewMessageID() == "" {
		t.Error("expected non-empty message id")
	}
}
