// Package migrate turns chat messages into AI-agnostic summaries that can be
// pasted into another assistant.
package migrate

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/model"
)

const (
	Version     = "1.1"
	PayloadType = "ai_chat_migration_summary"
)

// Scope is what a payload was built from
type Scope string

const (
	ScopeSingleMessage Scope = "single_message"
	ScopeFullChat      Scope = "full_chat"
)

// Payload is the migration document
type Payload struct {
	Version     string  `json:"version"`
	Type        string  `json:"type"`
	GeneratedAt string  `json:"generated_at"`
	Scope       Scope   `json:"scope"`
	Summary     Summary `json:"summary"`
	Meta        Meta    `json:"meta"`
}

// Summary is the extracted content
type Summary struct {
	Purpose      string   `json:"purpose"`
	Instructions []string `json:"instructions"`
	Outputs      []string `json:"outputs"`
	DataBlocks   []string `json:"data_blocks"`
	Constraints  []string `json:"constraints"`
}

// Meta describes how the payload was produced
type Meta struct {
	Normalized  bool     `json:"normalized"`
	AIAgnostic  bool     `json:"ai_agnostic"`
	SourceScope string   `json:"source_scope"`
	SafeFor     []string `json:"safe_for"`
}

var now = time.Now

var (
	fillerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(sure|okay|alright|got it|understood|absolutely|of course)[,!.]?\s*`),
		regexp.MustCompile(`(?i)^(hello|hi|hey|greetings)[,!.]?\s*`),
		regexp.MustCompile(`(?i)^(i'll|i will|let me|i'm going to)\s+`),
	}
	// removed mid-sentence; replaced by a space so neighbouring words stay apart
	fillerPhrase = regexp.MustCompile(`(?i)\s+(for you|to help|happy to|glad to)\s*`)

	platformPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)claude|gpt|gemini|chatgpt|openai|anthropic|google`),
		regexp.MustCompile(`(?i)as an ai|as a language model|i'm an ai`),
		regexp.MustCompile(`(?i)in this conversation|in this chat`),
	}

	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	whitespace       = regexp.MustCompile(`\s+`)
	sentenceEnd      = regexp.MustCompile(`[.!?]`)

	instructionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(create|add|remove|update|modify|delete|implement|fix|change|replace|configure)\s+`),
		regexp.MustCompile(`(?i)^(ensure|make sure|verify|check|validate)\s+`),
		regexp.MustCompile(`(?i)^(install|run|execute|build|deploy|test)\s+`),
	}
	outputPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(created|added|removed|updated|modified|deleted|implemented|fixed|changed|replaced|configured)\s+`),
		regexp.MustCompile(`(?i)^(installed|ran|executed|built|deployed|tested)\s+`),
		regexp.MustCompile(`(?i)✅|✓|completed|done|finished`),
	}
	constraintPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(must|should|cannot|do not|never|always)\s+`),
		regexp.MustCompile(`(?i)^(required|optional|mandatory|forbidden)\s*:`),
		regexp.MustCompile(`(?i)^(constraint|limitation|requirement|rule)\s*:`),
	}
)

// MigrateSingleMessage summarizes one message
func MigrateSingleMessage(message model.Message) Payload {
	content := message.Content
	return newPayload(ScopeSingleMessage, "message", Summary{
		Purpose:      purpose(content, ScopeSingleMessage),
		Instructions: matchLines(content, instructionPatterns),
		Outputs:      matchLines(content, outputPatterns),
		DataBlocks:   codeBlocks(content),
		Constraints:  matchLines(content, constraintPatterns),
	})
}

// MigrateFullChat summarizes a whole conversation. Repeated lines are kept once.
func MigrateFullChat(messages []model.Message) Payload {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	content := strings.Join(parts, "\n\n")

	return newPayload(ScopeFullChat, "chat", Summary{
		Purpose:      purpose(content, ScopeFullChat),
		Instructions: dedupe(matchLines(content, instructionPatterns)),
		Outputs:      dedupe(matchLines(content, outputPatterns)),
		DataBlocks:   codeBlocks(content),
		Constraints:  dedupe(matchLines(content, constraintPatterns)),
	})
}

// JSON renders the payload indented by two spaces
func (p Payload) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

func newPayload(scope Scope, sourceScope string, summary Summary) Payload {
	return Payload{
		Version:     Version,
		Type:        PayloadType,
		GeneratedAt: now().UTC().Format(time.RFC3339Nano),
		Scope:       scope,
		Summary:     summary,
		Meta: Meta{
			Normalized:  true,
			AIAgnostic:  true,
			SourceScope: sourceScope,
			SafeFor:     []string{"Claude", "GPT", "Gemini", "Other LLMs"},
		},
	}
}

// Normalize strips filler, replaces platform names with [AI] and collapses whitespace
func Normalize(text string) string {
	for _, p := range fillerPatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = fillerPhrase.ReplaceAllString(text, " ")
	for _, p := range platformPatterns {
		text = p.ReplaceAllString(text, "[AI]")
	}
	return whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
}

func codeBlocks(content string) []string {
	blocks := codeBlockPattern.FindAllString(content, -1)
	if blocks == nil {
		return []string{}
	}
	return blocks
}

func matchLines(content string, patterns []*regexp.Regexp) []string {
	out := []string{}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= 10 {
			continue
		}
		for _, p := range patterns {
			if p.MatchString(trimmed) {
				out = append(out, Normalize(trimmed))
				break
			}
		}
	}
	return out
}

func purpose(content string, scope Scope) string {
	if scope != ScopeSingleMessage {
		return "Conversation migration"
	}
	first := sentenceEnd.Split(Normalize(content), 2)[0]
	if r := []rune(first); len(r) > 150 {
		first = string(r[:150])
	}
	if first == "" {
		return "Response migration"
	}
	return first
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
