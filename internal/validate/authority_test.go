package validate

import (
	"testing"

	"github.com/haleyos/haley/internal/model"
)

func TestAuthorityClassifier_Domains(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"data.gov", "api.github.com"},
		SecondaryDomains: []string{"github.com", "kaggle.com"},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{url: "https://data.gov/dataset/42", expected: model.TierPrimary, desc: "Primary domain exact match"},
		{url: "https://catalog.data.gov/dataset", expected: model.TierPrimary, desc: "Primary domain with subdomain"},
		{url: "https://www.kaggle.com/datasets/x", expected: model.TierSecondary, desc: "www prefix ignored"},
		{url: "https://github.com/org/repo", expected: model.TierSecondary, desc: "Secondary domain"},
		{url: "https://api.github.com/repos/org/repo", expected: model.TierPrimary, desc: "Longer suffix wins"},
		{url: "https://notgithub.com/page", expected: model.TierTertiary, desc: "Suffix must be a label boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_PathPatterns(t *testing.T) {
	config := &model.AuthorityConfig{
		PathPatterns: []model.PathPattern{
			{Pattern: "^/api/", Tier: "primary"},
			{Pattern: "^/docs?/", Tier: "secondary"},
			{Pattern: "([", Tier: "primary"}, // invalid, skipped
		},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
	}{
		{url: "https://example.com/api/v1/items", expected: model.TierPrimary},
		{url: "https://example.com/docs/intro", expected: model.TierSecondary},
		{url: "https://example.com/doc/intro", expected: model.TierSecondary},
		{url: "https://example.com/blog/post", expected: model.TierTertiary},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if result := classifier.Classify(tt.url); result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_Defaults(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		risk     model.RiskLevel
	}{
		{url: "https://whitehouse.gov/statements", expected: model.TierPrimary, risk: model.RiskLow},
		{url: "https://mit.edu/research", expected: model.TierPrimary, risk: model.RiskLow},
		{url: "https://oxford.ac.uk/research", expected: model.TierPrimary, risk: model.RiskLow},
		{url: "https://arxiv.org/abs/2401.00001", expected: model.TierPrimary, risk: model.RiskLow},
		{url: "https://huggingface.co/datasets/x", expected: model.TierSecondary, risk: model.RiskMedium},
		{url: "https://randomsite.com/page", expected: model.TierTertiary, risk: model.RiskHigh},
		{url: "https://tourism-board.org/visit", expected: model.TierTertiary, risk: model.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if result := classifier.Classify(tt.url); result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
			if risk := classifier.RiskLevel(tt.url); risk != tt.risk {
				t.Errorf("Expected risk %s for %s, got %s", tt.risk, tt.url, risk)
			}
		})
	}
}

func TestAuthorityClassifier_DomainMap(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains: []string{"example.com"},
		DomainMap: map[string]string{
			"WWW.nytimes.com":      "secondary",
			"scraper.example.com": "tertiary",
		},
	}

	classifier := NewAuthorityClassifier(config)

	if tier := classifier.Classify("https://nytimes.com/article"); tier != model.TierSecondary {
		t.Errorf("Expected secondary, got %v", tier)
	}
	if tier := classifier.Classify("https://scraper.example.com/feed"); tier != model.TierTertiary {
		t.Errorf("Expected explicit map to override suffix, got %v", tier)
	}
}

func TestAuthorityClassifier_InvalidURLs(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	for _, raw := range []string{"not-a-url", "://missing-scheme", ""} {
		if tier := classifier.Classify(raw); tier != model.TierTertiary {
			t.Errorf("Expected tertiary for %q, got %v", raw, tier)
		}
	}
}

func TestAuthorityClassifier_PortHandling(t *testing.T) {
	classifier := NewAuthorityClassifier(&model.AuthorityConfig{PrimaryDomains: []string{"example.gov"}})

	for _, raw := range []string{"https://example.gov:443/page", "http://example.gov:8080/page"} {
		if tier := classifier.Classify(raw); tier != model.TierPrimary {
			t.Errorf("Expected primary for %s, got %v", raw, tier)
		}
	}
}

func TestParseTierString(t *testing.T) {
	tests := []struct {
		input    string
		expected model.AuthorityTier
	}{
		{"primary", model.TierPrimary},
		{"PRIMARY", model.TierPrimary},
		{"1", model.TierPrimary},
		{"secondary", model.TierSecondary},
		{"2", model.TierSecondary},
		{"tertiary", model.TierTertiary},
		{"unknown", model.TierTertiary},
		{"", model.TierTertiary},
	}

	for _, tt := range tests {
		if result := parseTierString(tt.input); result != tt.expected {
			t.Errorf("Expected %v for %q, got %v", tt.expected, tt.input, result)
		}
	}
}
