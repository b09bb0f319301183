package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haleyos/haley/internal/extract"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/util"
	"github.com/haleyos/haley/internal/validate"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Step is a stage of the harvest pipeline
type Step string

const (
	StepExtracting  Step = "extracting"
	StepValidating  Step = "validating"
	StepConnectors  Step = "connectors"
	StepIngest      Step = "ingest"
	StepNormalizing Step = "normalizing"
	StepAnalysis    Step = "analysis"
	StepUIConfig    Step = "ui_config"
	StepPackaging   Step = "packaging"
)

// StepInfo pairs a step with its progress label
type StepInfo struct {
	Step  Step
	Label string
}

// Steps lists the harvest pipeline in order
var Steps = []StepInfo{
	{StepExtracting, "Extracting idea..."},
	{StepValidating, "Validating sources..."},
	{StepConnectors, "Generating connectors..."},
	{StepIngest, "Running ingest..."},
	{StepNormalizing, "Normalizing data..."},
	{StepAnalysis, "Running LLM analysis..."},
	{StepUIConfig, "Generating UI config..."},
	{StepPackaging, "Packaging module..."},
}

// ErrEmptyPost is returned when there is nothing to harvest
var ErrEmptyPost = errors.New("please paste a post to harvest")

// HarvesterOptions configures a Harvester
type HarvesterOptions struct {
	Client    *Client
	Validator *validate.Validator

	// Fallback generates a local result when the module call fails
	Fallback bool
	Logger   *zap.Logger
	OnStep   func(StepInfo)
}

// Harvester turns a social media post into a module spec
type Harvester struct {
	opts   HarvesterOptions
	links  *extract.LinkExtractor
	logger *zap.Logger
}

// NewHarvester creates a harvester
func NewHarvester(opts HarvesterOptions) *Harvester {
	return &Harvester{
		opts:   opts,
		links:  extract.NewLinkExtractor(),
		logger: logging.OrNop(opts.Logger),
	}
}

// Harvest sends the post to the ideaharvester module. When the call fails
// and fallback is enabled, a result is generated locally instead.
func (h *Harvester) Harvest(ctx context.Context, post string) (*model.HarvestResult, error) {
	if strings.TrimSpace(post) == "" {
		return nil, ErrEmptyPost
	}

	h.step(0)
	raw, err := h.opts.Client.ExecuteCached(ctx, "ideaharvester", "harvest", map[string]any{
		"post_text":   post,
		"skip_ingest": true,
	})
	if err == nil {
		var result model.HarvestResult
		if err = json.Unmarshal(raw, &result); err == nil && result.IdeaSpec.Title != "" {
			for i := 1; i < len(Steps); i++ {
				h.step(i)
			}
			return &result, nil
		}
		if err == nil {
			err = errors.New("empty harvest result")
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		err = fmt.Errorf("harvest failed: %s", statusErr.StatusText())
	}
	if !h.opts.Fallback || ctx.Err() != nil {
		return nil, err
	}

	h.logger.Warn("Idea harvester unavailable, generating local result", zap.Error(err))
	return h.harvestLocal(ctx, post)
}

func (h *Harvester) harvestLocal(ctx context.Context, post string) (*model.HarvestResult, error) {
	text, err := extract.VisibleText(post)
	if err != nil {
		text = post
	}

	spec := IdeaSpecFromText(text)

	h.step(1)
	sources := []model.Source{{
		Name:      "Pasted post",
		RiskLevel: model.RiskLow,
		Status:    model.SourceValidated,
	}}
	links, _ := h.links.Extract(post, "")
	if h.opts.Validator != nil {
		links = h.opts.Validator.Validate(ctx, links)
	}
	sources = append(sources, links...)

	for i := 2; i < len(Steps)-2; i++ {
		h.step(i)
	}

	h.step(len(Steps) - 2)
	files, err := generatedFiles(spec)
	if err != nil {
		return nil, err
	}

	h.step(len(Steps) - 1)
	return &model.HarvestResult{
		IdeaSpec:       spec,
		SourceManifest: model.SourceManifest{Sources: sources},
		GeneratedFiles: files,
		ModuleID:       util.NewModuleID(),
		Fallback:       true,
	}, nil
}

func (h *Harvester) step(i int) {
	if h.opts.OnStep != nil {
		h.opts.OnStep(Steps[i])
	}
}

var (
	audiencePattern = regexp.MustCompile(`(?i)\bfor ((?:[a-z][a-z0-9-]*\s?){1,6})`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

var knownTech = []string{
	"Python", "Go", "Rust", "TypeScript", "JavaScript", "React", "Next.js", "Node.js",
	"FastAPI", "Django", "Flask", "PostgreSQL", "SQLite", "Redis", "Kafka", "Docker",
	"Kubernetes", "OpenAI", "Anthropic", "Claude", "Gemini", "LangChain", "Supabase", "Firebase",
}

// IdeaSpecFromText builds an idea spec from plain post text
func IdeaSpecFromText(text string) model.IdeaSpec {
	lines := nonEmptyLines(text)
	flat := strings.Join(strings.Fields(text), " ")

	spec := model.IdeaSpec{
		Title:          truncate(firstSentence(lines), 60),
		Description:    truncate(flat, 200),
		TargetAudience: "General users",
	}

	for _, l := range lines {
		if m := bulletPattern.FindStringSubmatch(l); m != nil {
			spec.CoreFeatures = append(spec.CoreFeatures, strings.TrimSpace(m[1]))
		}
	}
	if len(spec.CoreFeatures) == 0 {
		for _, s := range sentences(flat) {
			if len(spec.CoreFeatures) == 4 {
				break
			}
			spec.CoreFeatures = append(spec.CoreFeatures, s)
		}
	}
	if len(spec.CoreFeatures) > 6 {
		spec.CoreFeatures = spec.CoreFeatures[:6]
	}

	if m := audiencePattern.FindStringSubmatch(flat); m != nil {
		spec.TargetAudience = strings.TrimSpace(m[1])
	}

	lower := " " + strings.ToLower(flat) + " "
	for _, tech := range knownTech {
		if containsToken(lower, strings.ToLower(tech)) {
			spec.TechStack = append(spec.TechStack, tech)
		}
	}

	return spec
}

func generatedFiles(spec model.IdeaSpec) ([]model.GeneratedFile, error) {
	name := slug(spec.Title)

	config, err := yaml.Marshal(map[string]any{
		"name":     name,
		"version":  "1.0.0",
		"title":    spec.Title,
		"features": spec.CoreFeatures,
	})
	if err != nil {
		return nil, fmt.Errorf("render module config: %w", err)
	}

	properties := make(map[string]any, len(spec.CoreFeatures))
	for i := range spec.CoreFeatures {
		properties[fmt.Sprintf("feature_%d", i+1)] = map[string]string{"type": "object"}
	}
	schema, err := json.Marshal(map[string]any{"type": "object", "properties": properties})
	if err != nil {
		return nil, fmt.Errorf("render schema: %w", err)
	}

	ui, err := json.Marshal(map[string]any{"layout": "dashboard", "title": spec.Title, "components": len(spec.CoreFeatures)})
	if err != nil {
		return nil, fmt.Errorf("render ui config: %w", err)
	}

	return []model.GeneratedFile{
		{Filename: "module_config.yaml", ContentPreview: string(config), Type: "config"},
		{Filename: "schema.json", ContentPreview: string(schema), Type: "schema"},
		{Filename: "main.py", ContentPreview: fmt.Sprintf("from fastapi import FastAPI\n\napp = FastAPI(title=%q)\n...", spec.Title), Type: "code"},
		{Filename: "ui_config.json", ContentPreview: string(ui), Type: "ui"},
	}, nil
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstSentence(lines []string) string {
	if len(lines) == 0 {
		return "Untitled idea"
	}
	s := sentences(lines[0])
	if len(s) == 0 {
		return lines[0]
	}
	return strings.TrimRight(s[0], ".!?")
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ') {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func containsToken(haystack, token string) bool {
	for i := 0; ; {
		j := strings.Index(haystack[i:], token)
		if j < 0 {
			return false
		}
		j += i
		end := j + len(token)
		if !isAlnum(haystack[j-1]) && (end >= len(haystack) || !isAlnum(haystack[end])) {
			return true
		}
		i = j + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "module"
	}
	return out
}
