package model

import "time"

// Source is a data source referenced by a harvested idea
type Source struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Host      string        `json:"host,omitempty"`
	Text      string        `json:"text,omitempty"`      // Link anchor text
	RiskLevel RiskLevel     `json:"risk_level"`          // low, medium, high
	Status    SourceStatus  `json:"status"`              // validated, pending, failed
	Authority AuthorityTier `json:"authority,omitempty"` // Source authority classification
}

// RiskLevel classifies how risky it is to depend on a source
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SourceStatus is the validation state of a source
type SourceStatus string

const (
	SourceValidated SourceStatus = "validated"
	SourcePending   SourceStatus = "pending"
	SourceFailed    SourceStatus = "failed"
)

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Official APIs, government and academic data
	TierSecondary AuthorityTier = 2 // Established platforms and publishers
	TierTertiary  AuthorityTier = 3 // Blogs, personal sites, scraped pages
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// RiskLevel maps an authority tier onto a dependency risk level
func (t AuthorityTier) RiskLevel() RiskLevel {
	switch t {
	case TierPrimary:
		return RiskLow
	case TierSecondary:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ValidationResult contains the result of validating a source URL
type ValidationResult struct {
	URL          string        `json:"url"`
	IsAccessible bool          `json:"is_accessible"`
	StatusCode   int           `json:"status_code,omitempty"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	IsDead       bool          `json:"is_dead"`                // 404, 410, or unreachable
	RedirectURL  string        `json:"redirect_url,omitempty"` // If redirected
	Authority    AuthorityTier `json:"authority"`
	Error        string        `json:"error,omitempty"`
}

// Status derives the manifest status of a validated source
func (r ValidationResult) Status() SourceStatus {
	switch {
	case r.IsAccessible:
		return SourceValidated
	case r.Error == "context cancelled":
		return SourcePending
	default:
		return SourceFailed
	}
}
