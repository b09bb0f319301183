package validate

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/haleyos/haley/internal/model"
)

// AuthorityClassifier classifies data source URLs into authority tiers
type AuthorityClassifier struct {
	config       *model.AuthorityConfig
	domainMap    map[string]model.AuthorityTier
	suffixes     []domainSuffix
	pathPatterns []*compiledPattern
}

type domainSuffix struct {
	domain string
	tier   model.AuthorityTier
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		config:    config,
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
	}

	for host, tier := range config.DomainMap {
		classifier.domainMap[normalizeHost(host)] = parseTierString(tier)
	}

	for _, domain := range config.PrimaryDomains {
		classifier.suffixes = append(classifier.suffixes, domainSuffix{normalizeHost(domain), model.TierPrimary})
	}
	for _, domain := range config.SecondaryDomains {
		classifier.suffixes = append(classifier.suffixes, domainSuffix{normalizeHost(domain), model.TierSecondary})
	}
	// Longest suffix wins, so api.github.com can outrank github.com
	sort.SliceStable(classifier.suffixes, func(i, j int) bool {
		return len(classifier.suffixes[i].domain) > len(classifier.suffixes[j].domain)
	})

	for _, pathPattern := range config.PathPatterns {
		re, err := regexp.Compile(pathPattern.Pattern)
		if err != nil {
			continue
		}
		classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
			pattern: re,
			tier:    parseTierString(pathPattern.Tier),
		})
	}

	return classifier
}

// Classify classifies a URL into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := normalizeHost(parsed.Hostname())

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	for _, s := range a.suffixes {
		if host == s.domain || strings.HasSuffix(host, "."+s.domain) {
			return s.tier
		}
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic TLDs
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// RiskLevel classifies the dependency risk of a source URL
func (a *AuthorityClassifier) RiskLevel(rawURL string) model.RiskLevel {
	return a.Classify(rawURL).RiskLevel()
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
