package score

import (
	"testing"

	"github.com/haleyos/haley/internal/model"
)

func sampleClaims() []model.Claim {
	return []model.Claim{
		{ID: "C1", Statement: "a", Priority: model.PriorityMust},
		{ID: "C2", Statement: "b", Priority: model.PriorityMust},
		{ID: "C3", Statement: "c", Priority: model.PriorityShould},
		{ID: "C4", Statement: "d", Priority: model.PriorityCould},
	}
}

func findSignal(score model.Score, t model.SignalType) (model.Signal, bool) {
	for _, s := range score.Signals {
		if s.Type == t {
			return s, true
		}
	}
	return model.Signal{}, false
}

func TestScorer_Calculate_Complete(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(Input{
		Claims:          sampleClaims(),
		Questions:       []model.Question{{ID: "Q1", ClaimID: "C1", Priority: model.PriorityMust}, {ID: "Q2", ClaimID: "C2", Priority: model.PriorityMust}},
		SkippedClaimIDs: []string{"C3", "C4"},
		Answers:         []model.Answer{{QuestionID: "Q1", Value: "yes"}, {QuestionID: "Q2", Value: "10"}},
		Deltas: []model.Delta{
			{ID: "D1", ClaimIDs: []string{"C1"}, Status: model.DeltaComplete},
			{ID: "D2", ClaimIDs: []string{"C2", "C3"}, Status: model.DeltaComplete},
		},
	})

	if result.Index != 100 {
		t.Errorf("Expected index 100, got %d", result.Index)
	}
	if result.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", result.Confidence)
	}
	if _, ok := findSignal(result, model.SignalUnansweredMust); ok {
		t.Error("Expected no unanswered_must signal")
	}
	if _, ok := findSignal(result, model.SignalBuildErrors); ok {
		t.Error("Expected no build_errors signal")
	}
}

func TestScorer_Calculate_Empty(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(Input{})

	// No must claims still yields the must coverage points
	if result.Index != 35 {
		t.Errorf("Expected index 35 for empty input, got %d", result.Index)
	}
	if result.Confidence != "low" {
		t.Errorf("Expected low confidence without deltas, got %s", result.Confidence)
	}
	if len(result.Signals) != 4 {
		t.Errorf("Expected 4 signals, got %d", len(result.Signals))
	}
}

func TestScorer_Calculate_BlockedAndFailed(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(Input{
		Claims:    sampleClaims(),
		Questions: []model.Question{{ID: "Q1", ClaimID: "C1", Priority: model.PriorityMust}},
		Deltas: []model.Delta{
			{ID: "D1", ClaimIDs: []string{"C1"}, Status: model.DeltaPending, Error: "timeout"},
			{ID: "D2", ClaimIDs: []string{"C3"}, Status: model.DeltaBlocked, BlockedBy: []string{"D1"}},
			{ID: "D3", ClaimIDs: []string{"C4"}, Status: model.DeltaComplete},
			{ID: "D4", Status: model.DeltaComplete},
		},
	})

	// question: 1/4*25=6, must: 1/2*35=17, completion: 2/4*30=15, blocked: 0.75*10=7, penalty 5
	if result.Index != 40 {
		t.Errorf("Expected index 40, got %d", result.Index)
	}
	if result.Confidence != "low" {
		t.Errorf("Expected low confidence, got %s", result.Confidence)
	}

	sig, ok := findSignal(result, model.SignalBuildErrors)
	if !ok {
		t.Fatal("Expected build_errors signal")
	}
	if errs := sig.Data["errors"].(map[string]string); errs["D1"] != "timeout" {
		t.Errorf("Expected D1 error recorded, got %v", errs)
	}

	sig, ok = findSignal(result, model.SignalMustCoverage)
	if !ok {
		t.Fatal("Expected must_coverage signal")
	}
	if sig.Severity != model.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", sig.Severity)
	}
	if missing := sig.Data["missing"].([]string); len(missing) != 1 || missing[0] != "C2" {
		t.Errorf("Expected C2 missing, got %v", missing)
	}

	if _, ok := findSignal(result, model.SignalUnansweredMust); !ok {
		t.Error("Expected unanswered_must signal")
	}
}

func TestScorer_Formulas(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(Input{
		Claims: sampleClaims(),
		Deltas: []model.Delta{{ID: "D1", ClaimIDs: []string{"C1", "C2"}, Status: model.DeltaComplete}},
	})

	for _, sig := range result.Signals {
		if _, ok := sig.Data["formula"]; !ok {
			t.Errorf("Expected formula in %s signal data", sig.Type)
		}
	}
}
