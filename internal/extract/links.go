package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/haleyos/haley/internal/model"
	"golang.org/x/net/html"
)

var bareURLPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// LinkExtractor collects the data sources a post links to
type LinkExtractor struct{}

// NewLinkExtractor creates a new link extractor
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// Extract returns http(s) links found in HTML anchors and as bare URLs in
// the text. Relative hrefs resolve against base; duplicates are dropped.
func (e *LinkExtractor) Extract(text string, base string) ([]model.Source, error) {
	var baseURL *url.URL
	if base != "" {
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, err
		}
		baseURL = parsed
	}

	var sources []model.Source
	visible := text

	if looksLikeHTML(text) {
		doc, err := html.Parse(strings.NewReader(text))
		if err != nil {
			return nil, err
		}
		sources = append(sources, anchors(doc, baseURL)...)
		visible = extractVisibleText(doc)
	}

	for _, raw := range bareURLPattern.FindAllString(visible, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		if resolved := resolveURL(baseURL, raw); resolved != "" {
			sources = append(sources, newSource(resolved, ""))
		}
	}

	return dedupeSources(sources), nil
}

func anchors(doc *html.Node, base *url.URL) []model.Source {
	var sources []model.Source

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := ""
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = strings.TrimSpace(attr.Val)
				}
			}

			text := ""
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				text = strings.TrimSpace(n.FirstChild.Data)
			}

			if resolved := resolveURL(base, href); resolved != "" {
				sources = append(sources, newSource(resolved, text))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return sources
}

func newSource(rawURL, text string) model.Source {
	host := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		host = parsed.Host
	}
	name := text
	if name == "" {
		name = strings.TrimPrefix(host, "www.")
	}
	return model.Source{
		Name:   name,
		URL:    rawURL,
		Host:   host,
		Text:   text,
		Status: model.SourcePending,
	}
}

// resolveURL resolves href against base (when set) and keeps only http(s) URLs
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""

	return resolved.String()
}

func dedupeSources(sources []model.Source) []model.Source {
	seen := make(map[string]bool)
	var unique []model.Source

	for _, s := range sources {
		if !seen[s.URL] {
			seen[s.URL] = true
			unique = append(unique, s)
		}
	}

	return unique
}
