package rd

import (
	"context"
	"strings"
	"testing"

	"github.com/haleyos/haley/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeltas(t *testing.T) {
	raw := strings.Join([]string{
		"D|id=D1|title=Auth service|claims=C1;C9;C1|priority=must|effort=l|type=Integration|assignee=claude|desc=SAML \\| OIDC",
		"D|id=d2|title=Billing|claims=C2|blocked_by=D1;D7;D2|desc=Stripe",
		"D|id=D1|title=Duplicate dropped",
		"D|title=Export|claims=C3|priority=urgent|effort=XL|blocked_by=D2",
		"D|id=D5|claims=C3",
		"not a delta",
	}, "\n")

	deltas := ParseDeltas(raw, testClaims(), "gpt")
	require.Len(t, deltas, 3)

	assert.Equal(t, model.Delta{
		ID: "D1", Title: "Auth service", Description: "SAML | OIDC", ClaimIDs: []string{"C1"},
		Priority: model.PriorityMust, Effort: "L", DeltaType: "integration", AssignedTo: "claude",
		Status: model.DeltaPending, BlockedBy: []string{},
	}, deltas[0])

	assert.Equal(t, "D2", deltas[1].ID)
	assert.Equal(t, []string{"D1"}, deltas[1].BlockedBy)
	assert.Equal(t, model.DeltaBlocked, deltas[1].Status)
	assert.Equal(t, "gpt", deltas[1].AssignedTo)
	assert.Equal(t, model.PriorityShould, deltas[1].Priority)
	assert.Equal(t, "M", deltas[1].Effort)
	assert.Equal(t, "implementation", deltas[1].DeltaType)

	assert.Equal(t, "D3", deltas[2].ID)
	assert.Equal(t, "Export", deltas[2].Title)
	assert.Equal(t, model.PriorityShould, deltas[2].Priority)
	assert.Equal(t, "M", deltas[2].Effort)
	assert.Equal(t, []string{"D2"}, deltas[2].BlockedBy)

	clash := ParseDeltas("D|id=D2|title=Schema|claims=C1\nD|title=API layer|claims=C1", testClaims(), "")
	require.Len(t, clash, 2)
	assert.Equal(t, "D2", clash[0].ID)
	assert.Equal(t, "D1", clash[1].ID)
	assert.Equal(t, "API layer", clash[1].Title)
}

func TestParseDeltas_MissingIDSkipsTakenIDs(t *testing.T) {
	raw := "D|id=D2|title=Schema|claims=C1\nD|title=API layer|claims=C1\nD|title=Docs\nD|id=D1|title=Auth"
	deltas := ParseDeltas(raw, testClaims(), "")
	require.Len(t, deltas, 4)

	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"D2", "D3", "D4", "D1"}, ids)
	assert.Equal(t, "API layer", deltas[1].Title)
	assert.Equal(t, "Docs", deltas[2].Title)
}

func TestParseDeltas_ForwardReference(t *testing.T) {
	raw := "D|id=D1|title=UI|blocked_by=D2\nD|id=D2|title=API"
	deltas := ParseDeltas(raw, testClaims(), "")
	require.Len(t, deltas, 2)
	assert.Equal(t, []string{"D2"}, deltas[0].BlockedBy)
	assert.Equal(t, model.DeltaBlocked, deltas[0].Status)
	assert.Equal(t, model.DeltaPending, deltas[1].Status)
}

func TestGenerateDeltas_Prompt(t *testing.T) {
	rec := &recordedCall{}
	questions := []model.Question{
		{ID: "Q1", ClaimID: "C1", Question: "Which IdP?"},
		{ID: "Q2", ClaimID: "C2", Question: "Budget?"},
	}
	answers := []model.Answer{{QuestionID: "Q1", Value: "Okta"}}

	result, err := GenerateDeltas(context.Background(), testClaims(), questions, answers,
		fixedCall(rec, "D|id=D1|title=SSO|claims=C1", nil), "gemini")
	require.NoError(t, err)

	assert.InDelta(t, DefaultDeltaTemperature, rec.temperature, 1e-6)
	assert.Contains(t, rec.user, "- Q1 | claim=C1 | question=Which IdP? | answer=Okta")
	assert.Contains(t, rec.user, "- Q2 | claim=C2 | question=Budget? | answer=(unanswered)")
	assert.Contains(t, rec.user, "D|id=D1|title=...|claims=C1;C2")

	require.Len(t, result.Deltas, 1)
	assert.Equal(t, "gemini", result.Deltas[0].AssignedTo)
	assert.Equal(t, "D|id=D1|title=SSO|claims=C1", result.Raw)
}

func TestGenerateDeltas_NoClaims(t *testing.T) {
	rec := &recordedCall{}
	result, err := GenerateDeltas(context.Background(), nil, nil, nil, fixedCall(rec, "", nil), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.calls)
	assert.Empty(t, result.Deltas)
}
