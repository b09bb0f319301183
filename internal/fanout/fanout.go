// Package fanout sends one prompt to several LLM providers at once and
// tracks every provider's streamed response on a single conversation message.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/metrics"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/util"
	"github.com/haleyos/haley/internal/worker"
	"go.uber.org/zap"
)

// Operation is the metadata operation of fan-out messages
const Operation = "multi-llm"

var (
	// ErrNoCompleteFanout is returned by Summarize when no finished fan-out exists
	ErrNoCompleteFanout = errors.New("no multi-LLM responses found to summarize")

	// ErrUnknownMessage is returned for message ids the orchestrator never created
	ErrUnknownMessage = errors.New("unknown message")
)

// ProviderSource resolves provider ids; *llm.Registry implements it
type ProviderSource interface {
	Get(ctx context.Context, id string) (llm.Provider, error)
}

// Options configures an Orchestrator
type Options struct {
	Providers   ProviderSource
	Concurrency int
	Limiter     *worker.Limiter
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	// OnUpdate receives a snapshot after every change to a fan-out message
	OnUpdate func(model.Message)
}

// Orchestrator owns a conversation of fan-out messages
type Orchestrator struct {
	providers   ProviderSource
	concurrency int
	limiter     *worker.Limiter
	metrics     *metrics.Metrics
	logger      *zap.Logger
	onUpdate    func(model.Message)

	mu       sync.Mutex
	messages []*model.Message
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Limiter == nil {
		opts.Limiter = worker.NewLimiter(0, 1)
	}
	return &Orchestrator{
		providers:   opts.Providers,
		concurrency: opts.Concurrency,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		logger:      logging.OrNop(opts.Logger),
		onUpdate:    opts.OnUpdate,
	}
}

// Run appends the prompt and a fan-out message to the conversation, streams
// every provider into it and returns the final snapshot.
// Provider failures are recorded on the message, never returned.
func (o *Orchestrator) Run(ctx context.Context, prompt string, providers []string) (model.Message, error) {
	providers = dedupe(providers)
	if len(providers) == 0 {
		return model.Message{}, fmt.Errorf("no providers selected")
	}

	now := time.Now().UTC()
	user := &model.Message{
		ID:        util.NewMessageID(),
		Role:      model.RoleUser,
		Content:   prompt,
		Status:    model.StatusDone,
		Timestamp: now,
	}
	msg := &model.Message{
		ID:        util.NewMessageID(),
		Role:      model.RoleAssistant,
		Status:    model.StatusStreaming,
		Timestamp: now,
		Metadata: &model.MessageMetadata{
			Operation:          Operation,
			IsMultiLLM:         true,
			Providers:          providers,
			ProviderResponses:  make(map[string]string, len(providers)),
			CompletedProviders: []string{},
			Streaming:          true,
		},
	}
	for _, p := range providers {
		msg.Metadata.ProviderResponses[p] = ""
	}

	o.mu.Lock()
	o.messages = append(o.messages, user, msg)
	o.mu.Unlock()
	o.notify(msg.ID)

	resolved, err := o.resolve(ctx, providers)
	if err != nil {
		o.logger.Warn("fan-out setup failed", zap.Strings("providers", providers), zap.Error(err))
		o.failAll(msg.ID, err)
		snap, _ := o.Snapshot(msg.ID)
		return snap, nil
	}

	pool := worker.NewPool(ctx, o.concurrency)
	pool.Start()

	jobs := make([]worker.Job, len(providers))
	for i, id := range providers {
		id, p := id, resolved[i]
		jobs[i] = worker.JobFunc(func(ctx context.Context) worker.Result {
			return o.stream(ctx, msg.ID, id, p, prompt)
		})
	}
	pool.Go(jobs)
	pool.Wait()

	// Jobs dropped on cancellation never streamed; fail them so the
	// message still ends complete
	if err := ctx.Err(); err != nil {
		o.failIncomplete(msg.ID, err)
	}

	snap, _ := o.Snapshot(msg.ID)
	return snap, nil
}

// Retry re-runs one provider of an existing fan-out message
func (o *Orchestrator) Retry(ctx context.Context, messageID, provider string) (model.Message, error) {
	prompt, err := o.promptFor(messageID, provider)
	if err != nil {
		return model.Message{}, err
	}

	o.update(messageID, func(meta *model.MessageMetadata, m *model.Message) {
		meta.ProviderResponses[provider] = ""
		meta.CompletedProviders = remove(meta.CompletedProviders, provider)
		meta.Streaming = true
		meta.AllProvidersComplete = false
		m.Status = model.StatusStreaming
	})

	p, err := o.providers.Get(ctx, provider)
	if err != nil {
		o.finish(messageID, provider, "Error: "+err.Error())
	} else {
		o.stream(ctx, messageID, provider, p, prompt)
	}

	snap, _ := o.Snapshot(messageID)
	return snap, nil
}

// Summarize asks summaryProvider to compare the responses of a finished
// fan-out. An empty messageID picks the first finished fan-out of the
// conversation. Summary tokens go to onToken, not to the conversation.
func (o *Orchestrator) Summarize(ctx context.Context, messageID, summaryProvider string, onToken llm.TokenFunc) (string, error) {
	msg, ok := o.completeFanout(messageID)
	if !ok {
		return "", ErrNoCompleteFanout
	}

	prompt := SummaryPrompt(msg.Metadata.Providers, msg.Metadata.ProviderResponses)

	p, err := o.providers.Get(ctx, summaryProvider)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	var text strings.Builder
	start := time.Now()
	resp, err := p.Stream(ctx, llm.Request{User: prompt}, func(delta string) {
		text.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	})
	o.metrics.ObserveStream(summaryProvider, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("error generating summary: %w", err)
	}
	if text.Len() == 0 && resp != nil {
		return resp.Content, nil
	}
	return text.String(), nil
}

// SummaryPrompt builds the comparison prompt in provider order
func SummaryPrompt(providers []string, responses map[string]string) string {
	parts := make([]string, 0, len(providers))
	for _, p := range providers {
		parts = append(parts, strings.ToUpper(p)+": "+responses[p])
	}
	return "Summarize and compare these AI responses:\n\n" + strings.Join(parts, "\n\n")
}

// Snapshot returns a copy of a message
func (o *Orchestrator) Snapshot(messageID string) (model.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.messages {
		if m.ID == messageID {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

// Messages returns copies of every message in conversation order
func (o *Orchestrator) Messages() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Message, len(o.messages))
	for i, m := range o.messages {
		out[i] = m.Clone()
	}
	return out
}

func (o *Orchestrator) resolve(ctx context.Context, ids []string) ([]llm.Provider, error) {
	if o.providers == nil {
		return nil, fmt.Errorf("no provider source configured")
	}
	out := make([]llm.Provider, len(ids))
	for i, id := range ids {
		p, err := o.providers.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// stream runs one provider into the message; it always marks the provider complete
func (o *Orchestrator) stream(ctx context.Context, messageID, id string, p llm.Provider, prompt string) worker.Result {
	if err := o.limiter.Wait(ctx, id); err != nil {
		o.finish(messageID, id, "Error: "+err.Error())
		return &streamResult{provider: id, err: err}
	}

	start := time.Now()
	resp, err := p.Stream(ctx, llm.Request{User: prompt}, func(delta string) {
		o.metrics.AddChunk(id)
		o.update(messageID, func(meta *model.MessageMetadata, _ *model.Message) {
			meta.ProviderResponses[id] += delta
		})
	})
	o.metrics.ObserveStream(id, err, time.Since(start))

	if err != nil {
		o.logger.Warn("provider stream failed", zap.String("provider", id), zap.Error(err))
		o.finish(messageID, id, "Error: "+err.Error())
		return &streamResult{provider: id, err: err}
	}

	o.update(messageID, func(meta *model.MessageMetadata, _ *model.Message) {
		if meta.ProviderResponses[id] == "" && resp != nil {
			meta.ProviderResponses[id] = resp.Content
		}
	})
	o.finish(messageID, id, "")
	return &streamResult{provider: id}
}

// finish marks a provider complete, optionally replacing its response
func (o *Orchestrator) finish(messageID, provider, response string) {
	o.update(messageID, func(meta *model.MessageMetadata, m *model.Message) {
		if response != "" {
			meta.ProviderResponses[provider] = response
		}
		if !contains(meta.CompletedProviders, provider) {
			meta.CompletedProviders = append(meta.CompletedProviders, provider)
		}
		all := len(meta.CompletedProviders) == len(meta.Providers)
		meta.AllProvidersComplete = all
		meta.Streaming = !all
		if all {
			m.Status = model.StatusDone
		}
	})
}

func (o *Orchestrator) failAll(messageID string, err error) {
	o.update(messageID, func(meta *model.MessageMetadata, m *model.Message) {
		for _, p := range meta.Providers {
			meta.ProviderResponses[p] = "Error: " + err.Error()
		}
		meta.CompletedProviders = append([]string(nil), meta.Providers...)
		meta.Streaming = false
		meta.AllProvidersComplete = true
		m.Status = model.StatusDone
	})
}

// failIncomplete records err for every provider that has not completed
func (o *Orchestrator) failIncomplete(messageID string, err error) {
	snap, ok := o.Snapshot(messageID)
	if !ok || snap.Metadata == nil {
		return
	}
	for _, p := range snap.Metadata.Providers {
		if !contains(snap.Metadata.CompletedProviders, p) {
			o.finish(messageID, p, "Error: "+err.Error())
		}
	}
}

func (o *Orchestrator) update(messageID string, fn func(*model.MessageMetadata, *model.Message)) {
	o.mu.Lock()
	var snap model.Message
	found := false
	for _, m := range o.messages {
		if m.ID == messageID && m.Metadata != nil {
			fn(m.Metadata, m)
			snap = m.Clone()
			found = true
			break
		}
	}
	o.mu.Unlock()

	if found && o.onUpdate != nil {
		o.onUpdate(snap)
	}
}

func (o *Orchestrator) notify(messageID string) {
	if o.onUpdate == nil {
		return
	}
	if snap, ok := o.Snapshot(messageID); ok {
		o.onUpdate(snap)
	}
}

// promptFor finds the user prompt that precedes a fan-out message
func (o *Orchestrator) promptFor(messageID, provider string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, m := range o.messages {
		if m.ID != messageID {
			continue
		}
		if m.Metadata == nil || !m.Metadata.IsMultiLLM {
			return "", fmt.Errorf("message %s is not a multi-LLM message", messageID)
		}
		if !contains(m.Metadata.Providers, provider) {
			return "", fmt.Errorf("provider %s is not part of message %s", provider, messageID)
		}
		if i == 0 || o.messages[i-1].Role != model.RoleUser {
			return "", fmt.Errorf("no user prompt precedes message %s", messageID)
		}
		return o.messages[i-1].Content, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
}

func (o *Orchestrator) completeFanout(messageID string) (model.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.messages {
		if messageID != "" && m.ID != messageID {
			continue
		}
		if m.Metadata != nil && m.Metadata.IsMultiLLM && m.Metadata.AllProvidersComplete {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

type streamResult struct {
	provider string
	err      error
}

func (r *streamResult) GetError() error {
	return r.err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// BatchRunner adapts an Orchestrator to worker.PromptRunner
type BatchRunner struct {
	Orchestrator *Orchestrator
	Providers    []string
}

// RunPrompt fans the prompt out and returns each provider's final response
func (b *BatchRunner) RunPrompt(ctx context.Context, prompt string) (map[string]string, error) {
	msg, err := b.Orchestrator.Run(ctx, prompt, b.Providers)
	if err != nil {
		return nil, err
	}
	return msg.Metadata.ProviderResponses, nil
}
