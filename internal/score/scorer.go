package score

import (
	"fmt"
	"math"

	"github.com/haleyos/haley/internal/model"
)

// Input is the soundboard state a readiness score is computed from
type Input struct {
	Claims          []model.Claim
	Questions       []model.Question
	SkippedClaimIDs []string
	Answers         []model.Answer
	Deltas          []model.Delta
}

// Scorer calculates the readiness index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate calculates the readiness score and generates diagnostic signals
func (s *Scorer) Calculate(in Input) model.Score {
	var signals []model.Signal

	// 1. Question coverage (0-25 points)
	questionScore, questionSignal := s.calculateQuestionCoverage(in)
	signals = append(signals, questionSignal)

	// 2. Must-claim coverage by deltas (0-35 points)
	mustScore, mustSignal := s.calculateMustCoverage(in.Claims, in.Deltas)
	signals = append(signals, mustSignal)

	// 3. Completion (0-30 points)
	completionScore, completionSignal := s.calculateCompletion(in.Deltas)
	signals = append(signals, completionSignal)

	// 4. Blocked ratio (0-10 points)
	blockedScore, blockedSignal := s.calculateBlocked(in.Deltas)
	signals = append(signals, blockedSignal)

	// 5. Build errors (signal only)
	if sig := s.detectBuildErrors(in.Deltas); sig.Type != "" {
		signals = append(signals, sig)
	}

	// 6. Unanswered must questions (penalty)
	unanswered, unansweredSignal := s.detectUnansweredMust(in.Questions, in.Answers)
	if unanswered > 0 {
		signals = append(signals, unansweredSignal)
	}

	totalScore := questionScore + mustScore + completionScore + blockedScore
	if unanswered > 0 {
		totalScore -= 5
		if totalScore < 0 {
			totalScore = 0
		}
	}

	return model.Score{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, len(in.Deltas), unanswered),
		Signals:    signals,
	}
}

// calculateQuestionCoverage scores claims that got a question or an explicit skip (0-25 points)
func (s *Scorer) calculateQuestionCoverage(in Input) (int, model.Signal) {
	claimCount := len(in.Claims)
	if claimCount == 0 {
		return 0, model.Signal{
			Type:        model.SignalQuestionCoverage,
			Severity:    model.SeverityCritical,
			Description: "No claims generated",
			Data:        map[string]interface{}{"claims": 0},
		}
	}

	covered := make(map[string]bool)
	for _, q := range in.Questions {
		covered[q.ClaimID] = true
	}
	for _, id := range in.SkippedClaimIDs {
		covered[id] = true
	}

	coveredCount := 0
	for _, c := range in.Claims {
		if covered[c.ID] {
			coveredCount++
		}
	}

	ratio := float64(coveredCount) / float64(claimCount)
	score := int(ratio * 25)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalQuestionCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Claims questioned or skipped: %d/%d", coveredCount, claimCount),
		Data: map[string]interface{}{
			"claims":  claimCount,
			"covered": coveredCount,
			"ratio":   ratio,
			"score":   score,
			"formula": "(questioned_or_skipped / claim_count) * 25",
		},
	}
}

// calculateMustCoverage scores must claims addressed by at least one delta (0-35 points)
func (s *Scorer) calculateMustCoverage(claims []model.Claim, deltas []model.Delta) (int, model.Signal) {
	covered := make(map[string]bool)
	for _, d := range deltas {
		for _, id := range d.ClaimIDs {
			covered[id] = true
		}
	}

	mustCount := 0
	coveredCount := 0
	var missing []string
	for _, c := range claims {
		if c.Priority != model.PriorityMust {
			continue
		}
		mustCount++
		if covered[c.ID] {
			coveredCount++
		} else {
			missing = append(missing, c.ID)
		}
	}

	if mustCount == 0 {
		return 35, model.Signal{
			Type:        model.SignalMustCoverage,
			Severity:    model.SeverityInfo,
			Description: "No must claims to cover",
			Data:        map[string]interface{}{"must_claims": 0, "score": 35},
		}
	}

	ratio := float64(coveredCount) / float64(mustCount)
	score := int(ratio * 35)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalMustCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Must claims covered by deltas: %d/%d", coveredCount, mustCount),
		Data: map[string]interface{}{
			"must_claims": mustCount,
			"covered":     coveredCount,
			"missing":     missing,
			"ratio":       ratio,
			"score":       score,
			"formula":     "(must_claims_with_delta / must_claims) * 35",
		},
	}
}

// calculateCompletion scores built deltas (0-30 points)
func (s *Scorer) calculateCompletion(deltas []model.Delta) (int, model.Signal) {
	if len(deltas) == 0 {
		return 0, model.Signal{
			Type:        model.SignalCompletion,
			Severity:    model.SeverityCritical,
			Description: "No deltas generated",
			Data:        map[string]interface{}{"deltas": 0},
		}
	}

	complete := 0
	for _, d := range deltas {
		if d.Status == model.DeltaComplete {
			complete++
		}
	}

	ratio := float64(complete) / float64(len(deltas))
	score := int(math.Round(ratio * 30))

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCompletion,
		Severity:    severity,
		Description: fmt.Sprintf("Deltas complete: %d/%d (%.0f%%)", complete, len(deltas), ratio*100),
		Data: map[string]interface{}{
			"complete": complete,
			"total":    len(deltas),
			"ratio":    ratio,
			"score":    score,
			"formula":  "(complete / total) * 30",
		},
	}
}

// calculateBlocked scores deltas not stuck behind dependencies (0-10 points)
func (s *Scorer) calculateBlocked(deltas []model.Delta) (int, model.Signal) {
	if len(deltas) == 0 {
		return 0, model.Signal{
			Type:        model.SignalBlocked,
			Severity:    model.SeverityWarning,
			Description: "No deltas generated",
			Data:        map[string]interface{}{"deltas": 0},
		}
	}

	var blocked []string
	for _, d := range deltas {
		if d.Status == model.DeltaBlocked {
			blocked = append(blocked, d.ID)
		}
	}

	ratio := float64(len(blocked)) / float64(len(deltas))
	score := int((1 - ratio) * 10)

	severity := model.SeverityInfo
	if ratio > 0.5 {
		severity = model.SeverityCritical
	} else if ratio > 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalBlocked,
		Severity:    severity,
		Description: fmt.Sprintf("Blocked deltas: %d/%d", len(blocked), len(deltas)),
		Data: map[string]interface{}{
			"blocked":     len(blocked),
			"blocked_ids": blocked,
			"total":       len(deltas),
			"ratio":       ratio,
			"score":       score,
			"formula":     "(1 - blocked / total) * 10",
		},
	}
}

// detectBuildErrors reports deltas whose last build failed
func (s *Scorer) detectBuildErrors(deltas []model.Delta) model.Signal {
	errs := make(map[string]string)
	for _, d := range deltas {
		if d.Error != "" {
			errs[d.ID] = d.Error
		}
	}
	if len(errs) == 0 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalBuildErrors,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d delta build(s) failed", len(errs)),
		Data: map[string]interface{}{
			"failed": len(errs),
			"errors": errs,
		},
	}
}

// detectUnansweredMust counts must questions without an answer
func (s *Scorer) detectUnansweredMust(questions []model.Question, answers []model.Answer) (int, model.Signal) {
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if a.Value != "" {
			answered[a.QuestionID] = true
		}
	}

	var unanswered []string
	for _, q := range questions {
		if q.Priority == model.PriorityMust && !answered[q.ID] {
			unanswered = append(unanswered, q.ID)
		}
	}
	if len(unanswered) == 0 {
		return 0, model.Signal{}
	}

	return len(unanswered), model.Signal{
		Type:        model.SignalUnansweredMust,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d must question(s) unanswered", len(unanswered)),
		Data: map[string]interface{}{
			"question_ids": unanswered,
			"penalty":      5,
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, deltaCount int, unansweredMust int) string {
	if deltaCount == 0 {
		return "low"
	}

	if score >= 80 && unansweredMust == 0 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
