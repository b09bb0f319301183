package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/haleyos/haley/internal/model"
)

func TestGenerateClaims_EmptyInputs(t *testing.T) {
	if got := GenerateClaims("  ", "fast"); len(got) != 0 {
		t.Errorf("Expected no claims for empty concept, got %d", len(got))
	}
	if got := GenerateClaims("chat app", " \t"); len(got) != 0 {
		t.Errorf("Expected no claims for empty omega, got %d", len(got))
	}
}

func TestGenerateClaims_Count(t *testing.T) {
	tests := []struct {
		conceptLen int
		want       int
	}{
		{1, 5},
		{99, 5},
		{120, 6},
		{140, 7},
		{160, 8},
		{1000, 8},
	}

	for _, tt := range tests {
		concept := strings.Repeat("a", tt.conceptLen)
		claims := GenerateClaims(concept, "omega")
		if len(claims) != tt.want {
			t.Errorf("concept length %d: expected %d claims, got %d", tt.conceptLen, tt.want, len(claims))
		}
	}
}

func TestGenerateClaims_Templates(t *testing.T) {
	claims := GenerateClaims("  a voice journaling app  ", " under 200ms ")

	want := []model.Claim{
		{ID: "C1", Statement: "Can a voice journaling app be implemented to meet under 200ms with current technology?", Type: model.ClaimTypeCapability, Priority: model.PriorityMust, Heuristic: "template:capability"},
		{ID: "C2", Statement: "Does a voice journaling app require specific API integrations to achieve under 200ms?", Type: model.ClaimTypeIntegration, Priority: model.PriorityMust, Heuristic: "template:integration"},
		{ID: "C3", Statement: "Can a voice journaling app provide acceptable UX while delivering under 200ms?", Type: model.ClaimTypeUX, Priority: model.PriorityShould, Heuristic: "template:ux"},
		{ID: "C4", Statement: "Are there security implications for a voice journaling app given under 200ms?", Type: model.ClaimTypeSecurity, Priority: model.PriorityMust, Heuristic: "template:security"},
		{ID: "C5", Statement: "What are the cost constraints for implementing a voice journaling app to achieve under 200ms?", Type: model.ClaimTypeCost, Priority: model.PriorityShould, Heuristic: "template:cost"},
	}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Errorf("GenerateClaims mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateClaims_AllTemplates(t *testing.T) {
	claims := GenerateClaims(strings.Repeat("x", 200), "o")
	if len(claims) != 8 {
		t.Fatalf("Expected 8 claims, got %d", len(claims))
	}
	last := claims[7]
	if last.ID != "C8" || last.Type != model.ClaimTypeData || last.Priority != model.PriorityMust {
		t.Errorf("Unexpected last claim %+v", last)
	}
	if claims[6].Priority != model.PriorityCould {
		t.Errorf("Expected legal claim to be could, got %s", claims[6].Priority)
	}
}

func TestClaimExtractor_Constraints(t *testing.T) {
	extractor := NewClaimExtractor()

	text := "We are building a journaling app. It must encrypt entries at rest. " +
		"Ideally it works offline on mobile.\nThe budget could stretch to $50 a month. " +
		"Nothing else matters here really."

	claims, err := extractor.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []model.Claim{
		{Statement: "It must encrypt entries at rest.", Type: model.ClaimTypeSecurity, Priority: model.PriorityMust, Heuristic: "keyword:must"},
		{Statement: "Ideally it works offline on mobile.", Type: model.ClaimTypeUX, Priority: model.PriorityShould, Heuristic: "keyword:ideally"},
		{Statement: "The budget could stretch to $50 a month.", Type: model.ClaimTypeCost, Priority: model.PriorityCould, Heuristic: "keyword:could"},
	}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestClaimExtractor_HTML(t *testing.T) {
	extractor := NewClaimExtractor()

	claims, err := extractor.Extract(`<html><body>
		<p>Users must be able to export their data as CSV.</p>
		<script>var x = "it must not appear";</script>
		<p>It should support GDPR deletion requests.</p>
	</body></html>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d: %+v", len(claims), claims)
	}
	if claims[1].Type != model.ClaimTypeLegal {
		t.Errorf("Expected legal claim, got %s", claims[1].Type)
	}
	for _, c := range claims {
		if strings.Contains(c.Statement, "var x") {
			t.Errorf("script text leaked into claims: %q", c.Statement)
		}
	}
}

func TestClaimExtractor_WordBoundary(t *testing.T) {
	claims, err := NewClaimExtractor().Extract("Everything here is trustworthy and fine.")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected no claims when keywords only appear inside words, got %+v", claims)
	}
}

func TestAppendClaims(t *testing.T) {
	base := GenerateClaims("concept", "omega")
	extra := []model.Claim{
		{Statement: "It must run offline.", Type: model.ClaimTypeCapability, Priority: model.PriorityMust},
		{Statement: "it must run offline.", Type: model.ClaimTypeCapability, Priority: model.PriorityMust},
		{Statement: base[0].Statement},
	}

	got := AppendClaims(base, extra)
	if len(got) != len(base)+1 {
		t.Fatalf("Expected %d claims, got %d", len(base)+1, len(got))
	}
	if got[len(got)-1].ID != "C6" {
		t.Errorf("Expected appended claim id C6, got %s", got[len(got)-1].ID)
	}
	if base[0].ID != "C1" || len(base) != 5 {
		t.Error("AppendClaims must not modify base")
	}
}

func TestLinkExtractor_HTMLAndBareURLs(t *testing.T) {
	extractor := NewLinkExtractor()

	post := `<div>
		<a href="https://api.weather.gov/points">NOAA API</a>
		<a href="/docs#intro">Docs</a>
		<a href="mailto:me@example.com">mail</a>
		<a href="#top">top</a>
		<p>Also see https://data.gov/dataset/x. and https://api.weather.gov/points</p>
	</div>`

	sources, err := extractor.Extract(post, "https://blog.example.com/post/1")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	var urls []string
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	want := []string{
		"https://api.weather.gov/points",
		"https://blog.example.com/docs",
		"https://data.gov/dataset/x",
	}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("URL mismatch (-want +got):\n%s", diff)
	}

	if sources[0].Name != "NOAA API" || sources[0].Host != "api.weather.gov" {
		t.Errorf("Unexpected first source %+v", sources[0])
	}
	if sources[2].Name != "data.gov" || sources[2].Status != model.SourcePending {
		t.Errorf("Expected bare URL to be named after host, got %+v", sources[2])
	}
}

func TestLinkExtractor_PlainText(t *testing.T) {
	sources, err := NewLinkExtractor().Extract("Use https://www.kaggle.com/datasets (free) and ftp://old.example", "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("Expected 1 source, got %+v", sources)
	}
	if sources[0].Name != "kaggle.com" {
		t.Errorf("Expected name kaggle.com, got %s", sources[0].Name)
	}
}
