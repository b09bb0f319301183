package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAIProvider_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("Expected system + user messages, got %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Created: 1677652288,
			Model:   "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Index: 0,
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: "  Four.  ",
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 42},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{
		Name:    "gpt",
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), Request{System: "be brief", User: "2+2?"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Four." {
		t.Errorf("Expected trimmed content, got %q", resp.Content)
	}
	if resp.TokensUsed != 42 {
		t.Errorf("Expected 42 tokens, got %d", resp.TokensUsed)
	}
	if provider.Name() != "gpt" {
		t.Errorf("Expected name gpt, got %s", provider.Name())
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true")
		}
		if len(req.Messages) != 1 {
			t.Errorf("Expected only a user message without system text, got %d", len(req.Messages))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo", ""} {
			chunk := openai.ChatCompletionStreamResponse{
				Model: "gpt-4o-mini",
				Choices: []openai.ChatCompletionStreamChoice{
					{Delta: openai.ChatCompletionStreamChoiceDelta{Content: delta}},
				},
			}
			data, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	var tokens []string
	resp, err := provider.Stream(context.Background(), Request{User: "hi"}, func(d string) {
		tokens = append(tokens, d)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if strings.Join(tokens, "|") != "Hel|lo" {
		t.Errorf("Expected tokens Hel|lo, got %v", tokens)
	}
	if resp.Content != "Hello" {
		t.Errorf("Expected Hello, got %q", resp.Content)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", resp.Model)
	}
}

func TestOpenAIProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "bad", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Complete(context.Background(), Request{User: "hi"})
	if err == nil {
		t.Fatal("Expected error for 401")
	}
	if !strings.Contains(err.Error(), "OpenAI API error") {
		t.Errorf("Expected wrapped API error, got %v", err)
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{Name: "perplexity"})
	if err == nil {
		t.Fatal("Expected error without API key")
	}
	if err.Error() != "perplexity API key is required" {
		t.Errorf("Unexpected error: %v", err)
	}
}
