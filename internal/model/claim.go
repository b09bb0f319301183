package model

// Claim is a requirement statement derived from a product concept
type Claim struct {
	ID        string        `json:"id"`        // C1, C2, ...
	Statement string        `json:"statement"` // Requirement text
	Type      ClaimType     `json:"type"`
	Priority  ClaimPriority `json:"priority"`
	Heuristic string        `json:"heuristic,omitempty"` // Extraction rule that produced it (e.g., "template:capability")
}

// ClaimType categorizes the requirement area a claim covers
type ClaimType string

const (
	ClaimTypeCapability  ClaimType = "capability"
	ClaimTypeIntegration ClaimType = "integration"
	ClaimTypeUX          ClaimType = "ux"
	ClaimTypeSecurity    ClaimType = "security"
	ClaimTypeCost        ClaimType = "cost"
	ClaimTypeLatency     ClaimType = "latency"
	ClaimTypeLegal       ClaimType = "legal"
	ClaimTypeData        ClaimType = "data"
	ClaimTypeOther       ClaimType = "other"
)

// ParseClaimType returns the claim type for s, or ClaimTypeOther
func ParseClaimType(s string) ClaimType {
	switch t := ClaimType(s); t {
	case ClaimTypeCapability, ClaimTypeIntegration, ClaimTypeUX, ClaimTypeSecurity,
		ClaimTypeCost, ClaimTypeLatency, ClaimTypeLegal, ClaimTypeData:
		return t
	default:
		return ClaimTypeOther
	}
}

// ClaimPriority is a MoSCoW-style priority
type ClaimPriority string

const (
	PriorityMust   ClaimPriority = "must"
	PriorityShould ClaimPriority = "should"
	PriorityCould  ClaimPriority = "could"
)

// Valid reports whether p is one of must, should, could
func (p ClaimPriority) Valid() bool {
	return p == PriorityMust || p == PriorityShould || p == PriorityCould
}

// Rank orders priorities must < should < could
func (p ClaimPriority) Rank() int {
	switch p {
	case PriorityMust:
		return 0
	case PriorityShould:
		return 1
	default:
		return 2
	}
}

// Question is a clarifying question targeted at one claim
type Question struct {
	ID       string        `json:"id"` // Q1, Q2, ... assigned after sorting
	ClaimID  string        `json:"claimId"`
	Priority ClaimPriority `json:"priority"`
	Question string        `json:"question"`
	Kind     QuestionKind  `json:"kind"`
	Options  []string      `json:"options,omitempty"` // Only for choice questions
	Why      string        `json:"why,omitempty"`
}

// QuestionKind describes the expected answer shape
type QuestionKind string

const (
	KindChoice  QuestionKind = "choice"
	KindText    QuestionKind = "text"
	KindNumber  QuestionKind = "number"
	KindBoolean QuestionKind = "boolean"
)

// ParseQuestionKind returns the kind for s, defaulting to text
func ParseQuestionKind(s string) QuestionKind {
	switch k := QuestionKind(s); k {
	case KindChoice, KindNumber, KindBoolean:
		return k
	default:
		return KindText
	}
}

// Answer is a user's answer to a clarifying question
type Answer struct {
	QuestionID string `json:"questionId" yaml:"question_id"`
	Value      string `json:"value" yaml:"value"`
}

// Delta is a unit of implementation work that closes the gap for one or more claims
type Delta struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ClaimIDs    []string      `json:"claimIds"`
	Priority    ClaimPriority `json:"priority"`
	Effort      string        `json:"effort"`    // S, M, L
	DeltaType   string        `json:"deltaType"` // implementation, integration, research, ...
	AssignedTo  string        `json:"assignedTo"`
	Status      DeltaStatus   `json:"status"`
	BlockedBy   []string      `json:"blockedBy"`
	Output      string        `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// DeltaStatus is the lifecycle state of a delta
type DeltaStatus string

const (
	DeltaPending    DeltaStatus = "pending"
	DeltaInProgress DeltaStatus = "in-progress"
	DeltaBlocked    DeltaStatus = "blocked"
	DeltaComplete   DeltaStatus = "complete"
)
