package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haleyos/haley/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvents(t *testing.T, w http.ResponseWriter, events ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", e)
		flusher.Flush()
	}
}

func newChatServer(t *testing.T, stream func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *submitRequest) {
	t.Helper()
	var got submitRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/submit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(SubmitResponse{
			AssistantMessageID: "msg_1",
			QueuedAt:           "2026-01-02T03:04:05Z",
		})
	})
	mux.HandleFunc("/chat/stream/", stream)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &got
}

func TestClient_SubmitAndStream(t *testing.T) {
	server, got := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream/msg_1", r.URL.Path)
		writeEvents(t, w,
			`{"type":"status","status":"streaming"}`,
			`{"type":"token","content":"Hel"}`,
			`{"type":"token","content":"lo"}`,
			`{"type":"done","result":{"model_used":"claude","confidence":0.9,"operation":"chat"}}`,
		)
	})

	var statuses []model.MessageStatus
	var mu sync.Mutex
	client := NewClient(Options{
		BaseURL:        server.URL,
		ConversationID: "conv_test",
		OnStatusChange: func(m model.Message) {
			mu.Lock()
			statuses = append(statuses, m.Status)
			mu.Unlock()
		},
	})
	defer client.CloseAllStreams()

	ctx := context.Background()
	resp, err := client.SubmitMessage(ctx, "hi there", SubmitOptions{Provider: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.AssistantMessageID)

	assert.Equal(t, "conv_test", got.ConversationID)
	assert.Equal(t, "hi there", got.Message)
	assert.Equal(t, "default_user", got.UserID)
	assert.Equal(t, "chat.message", got.Intent)
	require.NotNil(t, got.Provider)
	assert.Equal(t, "claude", *got.Provider)

	msg, err := client.Wait(ctx, "msg_1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, model.StatusDone, msg.Status)
	require.NotNil(t, msg.Metadata)
	assert.Equal(t, "claude", msg.Metadata.ModelUsed)
	assert.InDelta(t, 0.9, msg.Metadata.Confidence, 1e-9)
	assert.Equal(t, "chat", msg.Metadata.Result["operation"])

	history := client.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.StatusDone, history[0].Status)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), history[1].Timestamp)

	mu.Lock()
	assert.Equal(t, []model.MessageStatus{model.StatusStreaming}, statuses)
	mu.Unlock()
}

func TestClient_NullProviderWhenUnset(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat/submit" {
			_ = json.NewDecoder(r.Body).Decode(&raw)
			_ = json.NewEncoder(w).Encode(SubmitResponse{AssistantMessageID: "m"})
			return
		}
		writeEvents(t, w, `{"type":"done"}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.SubmitMessage(context.Background(), "x", SubmitOptions{Intent: "os.compute"})
	require.NoError(t, err)
	_, err = client.Wait(context.Background(), "m")
	require.NoError(t, err)

	assert.Contains(t, raw, "provider")
	assert.Nil(t, raw["provider"])
	assert.Equal(t, "os.compute", raw["intent"])
	assert.True(t, strings.HasPrefix(client.ConversationID(), "conv_"))
}

func TestClient_StreamErrorEvent(t *testing.T) {
	server, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(t, w,
			`{"type":"token","content":"partial"}`,
			`{"type":"error","error":"provider exploded"}`,
		)
	})

	var errs []string
	var mu sync.Mutex
	client := NewClient(Options{
		BaseURL: server.URL,
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err.Error())
			mu.Unlock()
		},
	})

	_, err := client.SubmitMessage(context.Background(), "hi", SubmitOptions{})
	require.NoError(t, err)

	msg, err := client.Wait(context.Background(), "msg_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, msg.Status)
	assert.Equal(t, "Error: provider exploded", msg.Content)

	mu.Lock()
	assert.Equal(t, []string{"provider exploded"}, errs)
	mu.Unlock()
}

func TestClient_StreamConnectionError(t *testing.T) {
	server, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.SubmitMessage(context.Background(), "hi", SubmitOptions{})
	require.NoError(t, err)

	msg, err := client.Wait(context.Background(), "msg_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, msg.Status)
	assert.Equal(t, "Error: Connection error", msg.Content)
}

func TestClient_StreamEndsWithoutDone(t *testing.T) {
	server, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(t, w, `{"type":"token","content":"cut"}`)
	})

	client := NewClient(Options{BaseURL: server.URL})
	_, err := client.SubmitMessage(context.Background(), "hi", SubmitOptions{})
	require.NoError(t, err)

	msg, err := client.Wait(context.Background(), "msg_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, msg.Status)
	assert.Equal(t, "Error: Connection error", msg.Content)
}

func TestClient_SubmitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var gotErr error
	client := NewClient(Options{BaseURL: server.URL, OnError: func(err error) { gotErr = err }})

	_, err := client.SubmitMessage(context.Background(), "hi", SubmitOptions{})
	require.Error(t, err)
	assert.Equal(t, "Submit failed: Internal Server Error", err.Error())
	assert.Equal(t, err, gotErr)

	// The user message stays in local history
	history := client.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
}

func TestClient_DuplicateStreamIgnored(t *testing.T) {
	var connections int32
	release := make(chan struct{})
	server, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&connections, 1)
		writeEvents(t, w, `{"type":"status","status":"streaming"}`)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeEvents(t, w, `{"type":"done"}`)
	})

	client := NewClient(Options{BaseURL: server.URL})
	ctx := context.Background()
	_, err := client.SubmitMessage(ctx, "hi", SubmitOptions{})
	require.NoError(t, err)

	client.StreamMessage(ctx, "msg_1")
	client.StreamMessage(ctx, "msg_1")
	assert.Equal(t, 1, client.ActiveStreams())

	close(release)
	_, err = client.Wait(ctx, "msg_1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&connections))
	assert.Equal(t, 0, client.ActiveStreams())
}

func TestClient_CloseAllStreams(t *testing.T) {
	server, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(t, w, `{"type":"token","content":"a"}`)
		<-r.Context().Done()
	})

	var errCount int32
	client := NewClient(Options{BaseURL: server.URL, OnError: func(error) { atomic.AddInt32(&errCount, 1) }})
	_, err := client.SubmitMessage(context.Background(), "hi", SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msg, _ := client.Message("msg_1")
		return msg.Content == "a"
	}, 2*time.Second, 10*time.Millisecond)

	client.CloseAllStreams()
	assert.Equal(t, 0, client.ActiveStreams())

	msg, ok := client.Message("msg_1")
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, msg.Status, "closing a stream must not mark the message failed")
	assert.Equal(t, int32(0), atomic.LoadInt32(&errCount))

	client.ClearMessages()
	assert.Empty(t, client.Messages())
}

func TestClient_WaitUnknownMessage(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestClient_HistoryQueueAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/conversation/conv_1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"messages":[{"id":"a","role":"user","content":"q","timestamp":"2026-01-01T00:00:00Z"},{"id":"b","role":"assistant","content":"r","status":"done","timestamp":"2026-01-01T00:00:01Z"}]}`))
	})
	mux.HandleFunc("/chat/queue/conv_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pending":2,"processing":1}`))
	})
	mux.HandleFunc("/chat/message/b", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"b","status":"done"}`))
	})
	mux.HandleFunc("/chat/message/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, ConversationID: "conv_1"})
	ctx := context.Background()

	messages, err := client.GetConversationHistory(ctx, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.StatusDone, messages[1].Status)

	queue, err := client.GetQueueStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, queue["pending"])

	status, err := client.GetMessageStatus(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "done", status["status"])

	_, err = client.GetMessageStatus(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, "Failed to get message status: Not Found", err.Error())
}
