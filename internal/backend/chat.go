// Package backend talks to the Haley chat backend (async message queue with
// SSE token streams) and to the HaleyOS operation API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/sse"
	"github.com/haleyos/haley/internal/util"
	"go.uber.org/zap"
)

// ErrUnknownMessage is returned when waiting on a message the client never saw
var ErrUnknownMessage = errors.New("unknown message")

// DefaultChatURL is the chat backend used when none is configured
const DefaultChatURL = "http://localhost:8081"

// Options configures a chat Client
type Options struct {
	BaseURL        string
	ConversationID string
	UserID         string
	HTTPClient     *http.Client // Used for request/response calls; streams never time out on their own
	Logger         *zap.Logger

	OnMessage      func(model.Message)
	OnError        func(error)
	OnStatusChange func(model.Message)
}

// SubmitOptions are optional parameters of SubmitMessage
type SubmitOptions struct {
	Intent   string // Defaults to "chat.message"
	Provider string // Empty lets the backend choose
}

// SubmitResponse is returned by POST /chat/submit
type SubmitResponse struct {
	UserMessageID      string `json:"user_message_id,omitempty"`
	AssistantMessageID string `json:"assistant_message_id"`
	QueuedAt           string `json:"queued_at"`
	Position           int    `json:"position,omitempty"`
}

type submitRequest struct {
	ConversationID string  `json:"conversation_id"`
	Message        string  `json:"message"`
	UserID         string  `json:"user_id"`
	Intent         string  `json:"intent"`
	Provider       *string `json:"provider"`
}

// streamEvent is the JSON payload of every SSE data line
type streamEvent struct {
	Type    string          `json:"type"` // status, token, done, error
	Status  string          `json:"status,omitempty"`
	Content string          `json:"content,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type activeStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Client is an asynchronous chat client: messages are submitted to a queue
// and assistant replies are streamed back token by token
type Client struct {
	baseURL        string
	conversationID string
	userID         string
	httpClient     *http.Client
	streamClient   *http.Client
	logger         *zap.Logger

	onMessage      func(model.Message)
	onError        func(error)
	onStatusChange func(model.Message)

	mu       sync.Mutex
	messages []*model.Message
	streams  map[string]*activeStream
	finished map[string]chan struct{} // closed when a message's stream ends
}

// NewClient creates a chat client
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultChatURL
	}
	conversationID := opts.ConversationID
	if conversationID == "" {
		conversationID = util.NewConversationID(time.Now())
	}
	userID := opts.UserID
	if userID == "" {
		userID = "default_user"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		conversationID: conversationID,
		userID:         userID,
		httpClient:     httpClient,
		streamClient:   &http.Client{Transport: httpClient.Transport},
		logger:         logging.OrNop(opts.Logger),
		onMessage:      opts.OnMessage,
		onError:        opts.OnError,
		onStatusChange: opts.OnStatusChange,
		streams:        make(map[string]*activeStream),
		finished:       make(map[string]chan struct{}),
	}
	if c.onMessage == nil {
		c.onMessage = func(model.Message) {}
	}
	if c.onError == nil {
		c.onError = func(err error) { c.logger.Warn("chat client error", zap.Error(err)) }
	}
	if c.onStatusChange == nil {
		c.onStatusChange = func(model.Message) {}
	}
	return c
}

// ConversationID returns the conversation this client posts to
func (c *Client) ConversationID() string {
	return c.conversationID
}

// SubmitMessage queues a message and starts streaming the assistant reply.
// It returns as soon as the backend has accepted the message.
func (c *Client) SubmitMessage(ctx context.Context, text string, opts SubmitOptions) (*SubmitResponse, error) {
	userMsg := &model.Message{
		ID:        util.NewMessageID(),
		Role:      model.RoleUser,
		Content:   text,
		Status:    model.StatusDone,
		Timestamp: time.Now().UTC(),
	}
	c.appendMessage(userMsg)

	intent := opts.Intent
	if intent == "" {
		intent = "chat.message"
	}
	body := submitRequest{
		ConversationID: c.conversationID,
		Message:        text,
		UserID:         c.userID,
		Intent:         intent,
	}
	if opts.Provider != "" {
		body.Provider = &opts.Provider
	}

	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/submit", body, &resp, "Submit failed"); err != nil {
		c.onError(err)
		return nil, err
	}

	assistantMsg := &model.Message{
		ID:        resp.AssistantMessageID,
		Role:      model.RoleAssistant,
		Status:    model.StatusQueued,
		Timestamp: parseTimestamp(resp.QueuedAt),
	}
	c.appendMessage(assistantMsg)

	c.StreamMessage(ctx, resp.AssistantMessageID)
	return &resp, nil
}

// StreamMessage starts streaming tokens for an assistant message.
// It is a no-op when that message is already streaming.
func (c *Client) StreamMessage(ctx context.Context, messageID string) {
	c.mu.Lock()
	if _, ok := c.streams[messageID]; ok {
		c.mu.Unlock()
		return
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream := &activeStream{cancel: cancel, done: make(chan struct{})}
	c.streams[messageID] = stream
	if ch, ok := c.finished[messageID]; !ok || isClosed(ch) {
		c.finished[messageID] = make(chan struct{})
	}
	c.mu.Unlock()

	go c.readStream(streamCtx, messageID, stream)
}

func (c *Client) readStream(ctx context.Context, messageID string, stream *activeStream) {
	defer func() {
		stream.cancel()
		c.mu.Lock()
		if c.streams[messageID] == stream {
			delete(c.streams, messageID)
		}
		if ch, ok := c.finished[messageID]; ok && !isClosed(ch) {
			close(ch)
		}
		c.mu.Unlock()
		close(stream.done)
	}()

	endpoint := fmt.Sprintf("%s/chat/stream/%s", c.baseURL, url.PathEscape(messageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.handleStreamError(messageID, "Connection error")
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("stream connect failed", zap.String("message_id", messageID), zap.Error(err))
			c.handleStreamError(messageID, "Connection error")
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("stream rejected", zap.String("message_id", messageID), zap.Int("status", resp.StatusCode))
		c.handleStreamError(messageID, "Connection error")
		return
	}

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			// Closed on purpose
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("stream read failed", zap.String("message_id", messageID), zap.Error(err))
			}
			c.handleStreamError(messageID, "Connection error")
			return
		}

		var data streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
			c.logger.Debug("skipping malformed stream event", zap.String("message_id", messageID), zap.Error(err))
			continue
		}

		switch data.Type {
		case "status":
			c.updateMessageStatus(messageID, model.MessageStatus(data.Status))
		case "token":
			c.appendToken(messageID, data.Content)
		case "done":
			c.finalizeMessage(messageID, data.Result)
			return
		case "error":
			c.handleStreamError(messageID, data.Error)
			return
		}
	}
}

// Wait blocks until the stream of messageID ends and returns the final message
func (c *Client) Wait(ctx context.Context, messageID string) (model.Message, error) {
	c.mu.Lock()
	ch, ok := c.finished[messageID]
	c.mu.Unlock()
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}

	select {
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	case <-ch:
	}

	msg, ok := c.Message(messageID)
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	return msg, nil
}

func (c *Client) updateMessageStatus(messageID string, status model.MessageStatus) {
	msg, ok := c.mutate(messageID, func(m *model.Message) {
		m.Status = status
	})
	if ok {
		c.onStatusChange(msg)
	}
}

func (c *Client) appendToken(messageID, token string) {
	msg, ok := c.mutate(messageID, func(m *model.Message) {
		m.Content += token
	})
	if ok {
		c.onMessage(msg)
	}
}

func (c *Client) finalizeMessage(messageID string, result json.RawMessage) {
	msg, ok := c.mutate(messageID, func(m *model.Message) {
		m.Status = model.StatusDone
		m.Metadata = decodeResult(result)
	})
	if ok {
		c.onMessage(msg)
	}
}

func (c *Client) handleStreamError(messageID, errMsg string) {
	msg, ok := c.mutate(messageID, func(m *model.Message) {
		m.Status = model.StatusFailed
		m.Content = "Error: " + errMsg
	})
	if ok {
		c.onMessage(msg)
		c.onError(errors.New(errMsg))
	}
}

// decodeResult maps a done event's result onto message metadata,
// keeping the raw object alongside the recognized fields
func decodeResult(raw json.RawMessage) *model.MessageMetadata {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	meta := &model.MessageMetadata{}
	if err := json.Unmarshal(raw, meta); err != nil {
		meta = &model.MessageMetadata{}
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		meta.Result = fields
	}
	return meta
}

// mutate applies fn to a message under lock and returns a snapshot
func (c *Client) mutate(messageID string, fn func(*model.Message)) (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == messageID {
			fn(m)
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

func (c *Client) appendMessage(m *model.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	snapshot := m.Clone()
	c.mu.Unlock()
	c.onMessage(snapshot)
}

// Message returns a copy of one local message
func (c *Client) Message(messageID string) (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == messageID {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

// Messages returns a copy of the local message history
func (c *Client) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// ActiveStreams returns the number of open streams
func (c *Client) ActiveStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// CloseAllStreams stops every active stream and waits for them to exit
func (c *Client) CloseAllStreams() {
	c.mu.Lock()
	streams := make([]*activeStream, 0, len(c.streams))
	for id, s := range c.streams {
		streams = append(streams, s)
		delete(c.streams, id)
	}
	c.mu.Unlock()

	for _, s := range streams {
		s.cancel()
		<-s.done
	}
}

// ClearMessages closes all streams and drops the local history
func (c *Client) ClearMessages() {
	c.CloseAllStreams()
	c.mu.Lock()
	c.messages = nil
	c.finished = make(map[string]chan struct{})
	c.mu.Unlock()
}

// GetConversationHistory fetches the conversation's messages from the backend.
// A limit of 0 fetches everything.
func (c *Client) GetConversationHistory(ctx context.Context, limit int) ([]model.Message, error) {
	path := fmt.Sprintf("/chat/conversation/%s/messages", url.PathEscape(c.conversationID))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, "Failed to get history"); err != nil {
		c.onError(err)
		return nil, err
	}
	return resp.Messages, nil
}

// GetQueueStatus fetches the queue state of the conversation
func (c *Client) GetQueueStatus(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	path := "/chat/queue/" + url.PathEscape(c.conversationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, "Failed to get queue status"); err != nil {
		c.onError(err)
		return nil, err
	}
	return resp, nil
}

// GetMessageStatus fetches the backend state of one message
func (c *Client) GetMessageStatus(ctx context.Context, messageID string) (map[string]any, error) {
	var resp map[string]any
	path := "/chat/message/" + url.PathEscape(messageID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, "Failed to get message status"); err != nil {
		c.onError(err)
		return nil, err
	}
	return resp, nil
}

// doJSON performs a JSON request; non-2xx responses become "<failure>: <status text>"
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, failure string) error {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", failure, http.StatusText(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
