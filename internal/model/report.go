package model

import "time"

// SoundboardReport is the result of one R&D soundboard run
type SoundboardReport struct {
	Concept   string    `json:"concept"`
	Omega     string    `json:"omega"` // Target end state the concept works toward
	Provider  string    `json:"provider,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Claims          []Claim    `json:"claims"`
	Questions       []Question `json:"questions"`
	SkippedClaimIDs []string   `json:"skipped_claim_ids,omitempty"`
	Answers         []Answer   `json:"answers,omitempty"`
	Deltas          []Delta    `json:"deltas"`

	Score Score `json:"score"`
}

// Score represents the transparent readiness breakdown
type Score struct {
	Index      int      `json:"index"`      // Overall readiness index (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formulas and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalQuestionCoverage SignalType = "question_coverage" // Claims that were questioned or skipped
	SignalMustCoverage     SignalType = "must_coverage"     // Must claims covered by a delta
	SignalCompletion       SignalType = "completion"        // Deltas built
	SignalBlocked          SignalType = "blocked"           // Deltas stuck behind dependencies
	SignalBuildErrors      SignalType = "build_errors"      // Deltas whose build failed
	SignalUnansweredMust   SignalType = "unanswered_must"   // Must questions left without an answer
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
