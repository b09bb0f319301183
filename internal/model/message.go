package model

import "time"

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus is the delivery state of an assistant message
type MessageStatus string

const (
	StatusQueued    MessageStatus = "queued"
	StatusStreaming MessageStatus = "streaming"
	StatusDone      MessageStatus = "done"
	StatusFailed    MessageStatus = "failed"
)

// Message is a single chat message
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Status    MessageStatus    `json:"status,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries operation details and multi-LLM state
type MessageMetadata struct {
	Operation  string   `json:"operation,omitempty"`
	ModelUsed  string   `json:"model_used,omitempty"`
	LLMSources []string `json:"llm_sources,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`

	IsMultiLLM           bool              `json:"is_multi_llm,omitempty"`
	Providers            []string          `json:"providers,omitempty"`
	ProviderResponses    map[string]string `json:"provider_responses,omitempty"`
	CompletedProviders   []string          `json:"completed_providers,omitempty"`
	Streaming            bool              `json:"streaming,omitempty"`
	AllProvidersComplete bool              `json:"all_providers_complete,omitempty"`

	// Result is the raw backend result delivered with a done event
	Result map[string]any `json:"result,omitempty"`
}

// Clone returns a deep copy of the metadata
func (m *MessageMetadata) Clone() *MessageMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.LLMSources = append([]string(nil), m.LLMSources...)
	c.Providers = append([]string(nil), m.Providers...)
	c.CompletedProviders = append([]string(nil), m.CompletedProviders...)
	if m.ProviderResponses != nil {
		c.ProviderResponses = make(map[string]string, len(m.ProviderResponses))
		for k, v := range m.ProviderResponses {
			c.ProviderResponses[k] = v
		}
	}
	if m.Result != nil {
		c.Result = make(map[string]any, len(m.Result))
		for k, v := range m.Result {
			c.Result[k] = v
		}
	}
	return &c
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	m.Metadata = m.Metadata.Clone()
	return m
}

// ConversationHistory is the list view of a stored conversation
type ConversationHistory struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage"`
	Timestamp    time.Time `json:"timestamp"`
	LastActive   time.Time `json:"lastActive"`
	MessageCount int       `json:"messageCount"`
	ModelMode    string    `json:"modelMode,omitempty"`
}
