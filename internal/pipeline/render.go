package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/model"
)

// Renderer writes soundboard reports
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON to path ("-" for stdout)
func (r *Renderer) RenderJSON(report *model.SoundboardReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeOutput(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown to path ("-" for stdout)
func (r *Renderer) RenderMarkdown(report *model.SoundboardReport, path string) error {
	return writeOutput(path, []byte(r.Markdown(report)))
}

// Markdown formats the report
func (r *Renderer) Markdown(report *model.SoundboardReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Soundboard: %s\n\n", oneLine(report.Concept))
	fmt.Fprintf(&b, "**Target:** %s\n\n", oneLine(report.Omega))
	fmt.Fprintf(&b, "**Readiness:** %d/100 (%s confidence)\n\n", report.Score.Index, report.Score.Confidence)

	b.WriteString("## Claims\n\n")
	b.WriteString("| ID | Priority | Type | Statement |\n|---|---|---|---|\n")
	for _, c := range report.Claims {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.ID, c.Priority, c.Type, cell(c.Statement))
	}
	b.WriteString("\n")

	if len(report.Questions) > 0 {
		answers := make(map[string]string, len(report.Answers))
		for _, a := range report.Answers {
			answers[a.QuestionID] = a.Value
		}

		b.WriteString("## Questions\n\n")
		for _, q := range report.Questions {
			fmt.Fprintf(&b, "- **%s** (%s, %s) %s", q.ID, q.ClaimID, q.Priority, q.Question)
			if len(q.Options) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(q.Options, " / "))
			}
			b.WriteString("\n")
			if a, ok := answers[q.ID]; ok {
				fmt.Fprintf(&b, "  - Answer: %s\n", a)
			}
			if q.Why != "" {
				fmt.Fprintf(&b, "  - Why: %s\n", q.Why)
			}
		}
		b.WriteString("\n")
	}

	if len(report.SkippedClaimIDs) > 0 {
		fmt.Fprintf(&b, "Claims needing no input: %s\n\n", strings.Join(report.SkippedClaimIDs, ", "))
	}

	b.WriteString("## Deltas\n\n")
	b.WriteString("| ID | Title | Claims | Priority | Effort | Status | Blocked by |\n|---|---|---|---|---|---|---|\n")
	for _, d := range report.Deltas {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			d.ID, cell(d.Title), strings.Join(d.ClaimIDs, ", "), d.Priority, d.Effort, d.Status, strings.Join(d.BlockedBy, ", "))
	}
	b.WriteString("\n")

	for _, d := range report.Deltas {
		if d.Output == "" && d.Error == "" {
			continue
		}
		fmt.Fprintf(&b, "### %s: %s\n\n", d.ID, d.Title)
		if d.Error != "" {
			fmt.Fprintf(&b, "> Build failed: %s\n\n", d.Error)
		}
		if d.Output != "" {
			b.WriteString(d.Output)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Signals\n\n")
	for _, s := range report.Score.Signals {
		fmt.Fprintf(&b, "- **%s** [%s] %s\n", s.Type, s.Severity, s.Description)
		if formula, ok := s.Data["formula"].(string); ok {
			fmt.Fprintf(&b, "  - `%s`\n", formula)
		}
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "\n---\n_Generated by haley soundboard (%s) in %s_\n",
			report.Provider, report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	return b.String()
}

// RenderSummary prints a short progress-style summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.SoundboardReport) {
	counts := make(map[model.DeltaStatus]int)
	for _, d := range report.Deltas {
		counts[d.Status]++
	}

	fmt.Fprintf(w, "✓ %d claims, %d questions (%d claims skipped)\n", len(report.Claims), len(report.Questions), len(report.SkippedClaimIDs))
	fmt.Fprintf(w, "✓ %d deltas: %d complete, %d pending, %d blocked\n",
		len(report.Deltas), counts[model.DeltaComplete], counts[model.DeltaPending], counts[model.DeltaBlocked])
	fmt.Fprintf(w, "✓ Readiness index: %d/100 (%s)\n", report.Score.Index, report.Score.Confidence)
	for _, s := range report.Score.Signals {
		if s.Severity == model.SeverityInfo {
			continue
		}
		fmt.Fprintf(w, "  ! %s\n", s.Description)
	}
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}
