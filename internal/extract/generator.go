package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/haleyos/haley/internal/model"
)

type claimTemplate struct {
	format   string // %[1]s is the concept, %[2]s the omega
	claim    model.ClaimType
	priority model.ClaimPriority
}

// claimTemplates are applied in order; shorter concepts use a prefix of the list
var claimTemplates = []claimTemplate{
	{"Can %[1]s be implemented to meet %[2]s with current technology?", model.ClaimTypeCapability, model.PriorityMust},
	{"Does %[1]s require specific API integrations to achieve %[2]s?", model.ClaimTypeIntegration, model.PriorityMust},
	{"Can %[1]s provide acceptable UX while delivering %[2]s?", model.ClaimTypeUX, model.PriorityShould},
	{"Are there security implications for %[1]s given %[2]s?", model.ClaimTypeSecurity, model.PriorityMust},
	{"What are the cost constraints for implementing %[1]s to achieve %[2]s?", model.ClaimTypeCost, model.PriorityShould},
	{"Can %[1]s meet latency requirements specified in %[2]s?", model.ClaimTypeLatency, model.PriorityShould},
	{"Are there legal/compliance requirements for %[1]s relative to %[2]s?", model.ClaimTypeLegal, model.PriorityCould},
	{"How should %[1]s handle data privacy/storage given %[2]s?", model.ClaimTypeData, model.PriorityMust},
}

// GenerateClaims derives feasibility claims from a concept and its omega
// (the desired outcome) without calling an LLM. Longer concepts get more
// claims: one per 20 characters, between 5 and 8.
func GenerateClaims(concept, omega string) []model.Claim {
	concept = strings.TrimSpace(concept)
	omega = strings.TrimSpace(omega)
	if concept == "" || omega == "" {
		return []model.Claim{}
	}

	n := ClaimCount(concept)
	claims := make([]model.Claim, 0, n)
	for i := 0; i < n; i++ {
		t := claimTemplates[i]
		claims = append(claims, model.Claim{
			ID:        fmt.Sprintf("C%d", i+1),
			Statement: fmt.Sprintf(t.format, concept, omega),
			Type:      t.claim,
			Priority:  t.priority,
			Heuristic: "template:" + string(t.claim),
		})
	}
	return claims
}

// ClaimCount is the number of template claims generated for a trimmed concept
func ClaimCount(concept string) int {
	n := utf8.RuneCountInString(concept) / 20
	n = max(5, min(8, n))
	return min(len(claimTemplates), n)
}

// AppendClaims appends extra claims after base, numbering them from
// C<len(base)+1> and skipping statements already present
func AppendClaims(base, extra []model.Claim) []model.Claim {
	out := append([]model.Claim(nil), base...)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, c := range base {
		seen[strings.ToLower(c.Statement)] = true
	}
	for _, c := range extra {
		key := strings.ToLower(strings.TrimSpace(c.Statement))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.ID = fmt.Sprintf("C%d", len(out)+1)
		out = append(out, c)
	}
	return out
}
