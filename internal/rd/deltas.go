package rd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/model"
)

// DefaultDeltaTemperature is used when generating deltas
const DefaultDeltaTemperature = 0.3

// DeltaResult holds the parsed deltas and the raw LLM output
type DeltaResult struct {
	Deltas []model.Delta `json:"deltas"`
	Raw    string        `json:"raw"`
}

const deltaSystemPrompt = `You plan the implementation work that closes the gap between a concept and its requirements.
Rules:
1) Each delta is one concrete unit of work covering one or more claims.
2) Every must claim should be covered by at least one delta.
3) Use blocked_by only for real dependencies on other deltas in your list.
4) Effort is S, M or L.
5) Output ONLY the required line format. No prose, no markdown, no JSON.`

// GenerateDeltas asks the LLM for implementation deltas covering the
// claims, given the clarifying questions and the user's answers.
// assignee is recorded on deltas that do not name one.
func GenerateDeltas(ctx context.Context, claims []model.Claim, questions []model.Question, answers []model.Answer, call llm.Call, assignee string) (*DeltaResult, error) {
	clean := SanitizeClaims(claims)
	if len(clean) == 0 {
		return &DeltaResult{Deltas: []model.Delta{}}, nil
	}

	raw, err := call(ctx, deltaSystemPrompt, buildDeltaPrompt(clean, questions, answers), DefaultDeltaTemperature)
	if err != nil {
		return nil, fmt.Errorf("generate deltas: %w", err)
	}

	return &DeltaResult{Deltas: ParseDeltas(raw, clean, assignee), Raw: raw}, nil
}

func buildDeltaPrompt(claims []model.Claim, questions []model.Question, answers []model.Answer) string {
	answerFor := make(map[string]string, len(answers))
	for _, a := range answers {
		answerFor[a.QuestionID] = a.Value
	}

	var b strings.Builder
	b.WriteString("CLAIMS:\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "- %s | priority=%s | type=%s | statement=%s\n", c.ID, c.Priority, c.Type, EscapePipes(c.Statement))
	}

	if len(questions) > 0 {
		b.WriteString("\nANSWERS:\n")
		for _, q := range questions {
			answer := answerFor[q.ID]
			if answer == "" {
				answer = "(unanswered)"
			}
			fmt.Fprintf(&b, "- %s | claim=%s | question=%s | answer=%s\n", q.ID, q.ClaimID, EscapePipes(q.Question), EscapePipes(answer))
		}
	}

	b.WriteString("\nOUTPUT FORMAT (one line each):\n")
	b.WriteString("D|id=D1|title=...|claims=C1;C2|priority=must|effort=S|type=implementation|assignee=...|blocked_by=D2;D3|desc=...\n")
	b.WriteString("\nHARD CONSTRAINTS:\n")
	b.WriteString("- Ids are D1, D2, ... in order.\n")
	b.WriteString("- blocked_by may only name other delta ids from your list.\n")
	b.WriteString("- Keep titles short.")
	return b.String()
}

// ParseDeltas parses D lines. Missing ids take the first free D<n>, duplicate ids are
// dropped, and references to unknown claims or deltas are removed. Deltas
// with dependencies start blocked, the rest pending.
func ParseDeltas(raw string, claims []model.Claim, assignee string) []model.Delta {
	known := make(map[string]bool, len(claims))
	for _, c := range claims {
		known[c.ID] = true
	}

	var lines []map[string]string
	taken := make(map[string]bool)
	for _, line := range protocolLines(raw) {
		if !strings.HasPrefix(line, "D|") {
			continue
		}
		fields := ParseFields(line)
		if fields["title"] == "" && fields["desc"] == "" {
			continue
		}
		lines = append(lines, fields)
		if id := strings.ToUpper(strings.TrimSpace(fields["id"])); id != "" {
			taken[id] = true
		}
	}

	deltas := []model.Delta{}
	seen := make(map[string]bool)
	next := 1

	for _, fields := range lines {
		id := strings.ToUpper(strings.TrimSpace(fields["id"]))
		if id == "" {
			// Missing ids take the first D<n> no other line claims
			for taken[fmt.Sprintf("D%d", next)] {
				next++
			}
			id = fmt.Sprintf("D%d", next)
			taken[id] = true
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		title := fields["title"]
		if title == "" {
			title = fields["desc"]
		}

		var claimIDs []string
		for _, cid := range splitList(fields["claims"]) {
			if known[cid] && !slices.Contains(claimIDs, cid) {
				claimIDs = append(claimIDs, cid)
			}
		}

		priority := model.ClaimPriority(strings.ToLower(fields["priority"]))
		if !priority.Valid() {
			priority = model.PriorityShould
		}

		effort := strings.ToUpper(fields["effort"])
		if effort != "S" && effort != "M" && effort != "L" {
			effort = "M"
		}

		deltaType := strings.ToLower(fields["type"])
		if deltaType == "" {
			deltaType = "implementation"
		}

		assigned := fields["assignee"]
		if assigned == "" {
			assigned = assignee
		}

		var blockedBy []string
		for _, dep := range splitList(fields["blocked_by"]) {
			blockedBy = append(blockedBy, strings.ToUpper(dep))
		}

		deltas = append(deltas, model.Delta{
			ID:          id,
			Title:       title,
			Description: fields["desc"],
			ClaimIDs:    claimIDs,
			Priority:    priority,
			Effort:      effort,
			DeltaType:   deltaType,
			AssignedTo:  assigned,
			BlockedBy:   blockedBy,
		})
	}

	// Dependencies can point forward, so they are filtered once all ids are known
	for i := range deltas {
		d := &deltas[i]
		var deps []string
		for _, dep := range d.BlockedBy {
			if dep != d.ID && seen[dep] && !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		d.BlockedBy = deps
		if d.ClaimIDs == nil {
			d.ClaimIDs = []string{}
		}
		if d.BlockedBy == nil {
			d.BlockedBy = []string{}
		}
		if len(d.BlockedBy) > 0 {
			d.Status = model.DeltaBlocked
		} else {
			d.Status = model.DeltaPending
		}
	}

	return deltas
}
