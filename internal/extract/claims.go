package extract

import (
	"strings"

	"github.com/haleyos/haley/internal/model"
	"golang.org/x/net/html"
)

type keyword struct {
	word  string
	value string
}

// ClaimExtractor finds user-stated constraints in free text (or HTML)
// and turns them into claims
type ClaimExtractor struct {
	priorities []keyword
	types      []keyword
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{
		// First match wins, so stronger phrases come first
		priorities: []keyword{
			{"must", string(model.PriorityMust)},
			{"shall", string(model.PriorityMust)},
			{"required", string(model.PriorityMust)},
			{"requires", string(model.PriorityMust)},
			{"has to", string(model.PriorityMust)},
			{"need to", string(model.PriorityMust)},
			{"needs to", string(model.PriorityMust)},
			{"cannot", string(model.PriorityMust)},
			{"should", string(model.PriorityShould)},
			{"prefer", string(model.PriorityShould)},
			{"ideally", string(model.PriorityShould)},
			{"nice to have", string(model.PriorityCould)},
			{"could", string(model.PriorityCould)},
			{"optional", string(model.PriorityCould)},
			{"maybe", string(model.PriorityCould)},
		},
		types: []keyword{
			{"gdpr", string(model.ClaimTypeLegal)},
			{"hipaa", string(model.ClaimTypeLegal)},
			{"compliance", string(model.ClaimTypeLegal)},
			{"legal", string(model.ClaimTypeLegal)},
			{"license", string(model.ClaimTypeLegal)},
			{"privacy", string(model.ClaimTypeData)},
			{"storage", string(model.ClaimTypeData)},
			{"database", string(model.ClaimTypeData)},
			{"data", string(model.ClaimTypeData)},
			{"encrypt", string(model.ClaimTypeSecurity)},
			{"secure", string(model.ClaimTypeSecurity)},
			{"security", string(model.ClaimTypeSecurity)},
			{"auth", string(model.ClaimTypeSecurity)},
			{"latency", string(model.ClaimTypeLatency)},
			{"real-time", string(model.ClaimTypeLatency)},
			{"realtime", string(model.ClaimTypeLatency)},
			{"milliseconds", string(model.ClaimTypeLatency)},
			{"budget", string(model.ClaimTypeCost)},
			{"cost", string(model.ClaimTypeCost)},
			{"price", string(model.ClaimTypeCost)},
			{"api", string(model.ClaimTypeIntegration)},
			{"integrat", string(model.ClaimTypeIntegration)},
			{"webhook", string(model.ClaimTypeIntegration)},
			{"user", string(model.ClaimTypeUX)},
			{"interface", string(model.ClaimTypeUX)},
			{"mobile", string(model.ClaimTypeUX)},
			{"offline", string(model.ClaimTypeCapability)},
			{"support", string(model.ClaimTypeCapability)},
		},
	}
}

// Extract returns one claim per constraint sentence. Claims carry no id;
// AppendClaims numbers them.
func (e *ClaimExtractor) Extract(text string) ([]model.Claim, error) {
	visible, err := VisibleText(text)
	if err != nil {
		return nil, err
	}

	var claims []model.Claim
	for _, sentence := range splitSentences(visible) {
		lower := strings.ToLower(sentence)

		priority, pword := match(lower, e.priorities)
		if priority == "" {
			continue
		}
		claimType, _ := match(lower, e.types)
		if claimType == "" {
			claimType = string(model.ClaimTypeOther)
		}

		claims = append(claims, model.Claim{
			Statement: sentence,
			Type:      model.ClaimType(claimType),
			Priority:  model.ClaimPriority(priority),
			Heuristic: "keyword:" + pword,
		})
	}

	return dedupeClaims(claims), nil
}

// match returns the value and word of the first keyword found as a word prefix in s
func match(s string, keywords []keyword) (string, string) {
	for _, k := range keywords {
		if containsWord(s, k.word) {
			return k.value, k.word
		}
	}
	return "", ""
}

// containsWord reports whether word occurs in s starting at a word boundary
func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		pos := i + j
		if pos == 0 || !isWordByte(s[pos-1]) {
			return true
		}
		i = pos + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// VisibleText returns the text of s, stripping markup when s looks like HTML
func VisibleText(s string) (string, error) {
	if !looksLikeHTML(s) {
		return s, nil
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", err
	}
	return extractVisibleText(doc), nil
}

func looksLikeHTML(s string) bool {
	i := strings.Index(s, "<")
	return i >= 0 && strings.Contains(s[i:], ">")
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

// splitSentences splits text on . ! ? followed by whitespace, and on newlines.
// Fragments shorter than 12 or longer than 500 bytes are dropped.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 12 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n') {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// dedupeClaims removes duplicate statements, keeping the first
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	var unique []model.Claim

	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Statement))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}
