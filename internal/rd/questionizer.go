package rd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/model"
)

// DefaultQuestionTemperature is used when Questionize gets a zero temperature
const DefaultQuestionTemperature = 0.2

const maxQuestionsPerClaim = 2

// QuestionizeResult holds the parsed questions and the raw LLM output
type QuestionizeResult struct {
	Questions       []model.Question `json:"questions"`
	SkippedClaimIDs []string         `json:"skippedClaimIds"` // Claims that need no user input
	Raw             string           `json:"raw"`
}

const questionSystemPrompt = `You convert feasibility claims into the MINIMUM questions needed from the user.
Rules:
1) If a claim can be validated by browsing/docs/prototyping without user-specific info, output SKIP for that claim.
2) If user info is needed, ask at most 2 questions per claim.
3) Prefer multiple-choice. Keep choices short.
4) Output ONLY the required line format. No prose, no markdown, no JSON.
5) Use priorities from the claim when present. If missing, use should.`

// Questionize asks the LLM which claims need user input and parses the
// questions it returns
func Questionize(ctx context.Context, claims []model.Claim, call llm.Call, temperature float32) (*QuestionizeResult, error) {
	clean := SanitizeClaims(claims)
	if len(clean) == 0 {
		return &QuestionizeResult{Questions: []model.Question{}, SkippedClaimIDs: []string{}}, nil
	}

	if temperature == 0 {
		temperature = DefaultQuestionTemperature
	}

	raw, err := call(ctx, questionSystemPrompt, buildQuestionPrompt(clean), temperature)
	if err != nil {
		return nil, fmt.Errorf("questionize claims: %w", err)
	}

	questions, skipped := ParseQuestions(raw, clean)
	return &QuestionizeResult{Questions: questions, SkippedClaimIDs: skipped, Raw: raw}, nil
}

// SanitizeClaims drops claims without an id or statement and fills in
// type other and priority should
func SanitizeClaims(claims []model.Claim) []model.Claim {
	clean := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		c.ID = strings.TrimSpace(c.ID)
		c.Statement = strings.TrimSpace(c.Statement)
		if c.ID == "" || c.Statement == "" {
			continue
		}
		if c.Type == "" {
			c.Type = model.ClaimTypeOther
		}
		if !c.Priority.Valid() {
			c.Priority = model.PriorityShould
		}
		clean = append(clean, c)
	}
	return clean
}

func buildQuestionPrompt(claims []model.Claim) string {
	var b strings.Builder
	b.WriteString("CLAIMS:\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "- %s | priority=%s | type=%s | statement=%s\n", c.ID, c.Priority, c.Type, EscapePipes(c.Statement))
	}
	b.WriteString("\nOUTPUT FORMAT (one line each):\n")
	b.WriteString("SKIP|claim=C1|why=...\n")
	b.WriteString("Q|claim=C1|priority=must|kind=choice|text=...|options=a;b;c|why=...\n")
	b.WriteString("\nHARD CONSTRAINTS:\n")
	b.WriteString("- Ask 0–2 questions per claim.\n")
	b.WriteString("- If you ask a question, keep it short.\n")
	b.WriteString("- For kind=choice, include 2–5 options.")
	return b.String()
}

// ParseQuestions parses SKIP and Q lines against the known claims.
// Questions are capped per claim, sorted must→should→could then by claim id,
// and numbered Q1..Qn.
func ParseQuestions(raw string, claims []model.Claim) ([]model.Question, []string) {
	priorities := make(map[string]model.ClaimPriority, len(claims))
	for _, c := range claims {
		priorities[c.ID] = c.Priority
	}

	questions := []model.Question{}
	skipped := []string{}
	seenSkip := make(map[string]bool)
	perClaim := make(map[string]int)

	for _, line := range protocolLines(raw) {
		switch {
		case strings.HasPrefix(line, "SKIP|"):
			claimID := ParseFields(line)["claim"]
			if _, ok := priorities[claimID]; ok && !seenSkip[claimID] {
				seenSkip[claimID] = true
				skipped = append(skipped, claimID)
			}

		case strings.HasPrefix(line, "Q|"):
			fields := ParseFields(line)
			claimID := fields["claim"]
			claimPriority, ok := priorities[claimID]
			if !ok || fields["text"] == "" {
				continue
			}
			if perClaim[claimID] >= maxQuestionsPerClaim {
				continue
			}

			priority := model.ClaimPriority(strings.ToLower(fields["priority"]))
			if !priority.Valid() {
				priority = claimPriority
			}

			q := model.Question{
				ClaimID:  claimID,
				Priority: priority,
				Question: fields["text"],
				Kind:     model.ParseQuestionKind(strings.ToLower(fields["kind"])),
				Why:      fields["why"],
			}
			if q.Kind == model.KindChoice {
				if opts := splitList(fields["options"]); len(opts) >= 2 {
					q.Options = opts
				} else {
					q.Kind = model.KindText
				}
			}

			perClaim[claimID]++
			questions = append(questions, q)
		}
	}

	sort.SliceStable(questions, func(i, j int) bool {
		ri, rj := questions[i].Priority.Rank(), questions[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return questions[i].ClaimID < questions[j].ClaimID
	})
	for i := range questions {
		questions[i].ID = fmt.Sprintf("Q%d", i+1)
	}

	return questions, skipped
}
