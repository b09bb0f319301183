package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	sbConcept     string
	sbOmega       string
	sbProvider    string
	sbTemperature float32
	sbSequential  bool
	sbParallel    bool
	sbExtract     bool
	sbSkipBuild   bool
	sbAnswers     []string
	sbAnswersFile string
	sbJSON        string
	sbMD          string
	sbNoFooter    bool
	sbTimeout     time.Duration
)

// soundboardCmd represents the soundboard command
var soundboardCmd = &cobra.Command{
	Use:   "soundboard",
	Short: "Turn a concept into claims, questions and implementation deltas",
	Long: `The R&D soundboard compares a concept with its target end state (omega).

It derives requirement claims, asks the few questions that block
implementation, plans deltas with dependencies, builds them in dependency
order and scores how ready the plan is.`,
}

var soundboardRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full soundboard pipeline",
	Long: `Example:
  haley soundboard run --concept "Habit tracker with streaks" --omega "Mobile app with sync"
  haley soundboard run --concept-file idea.md --omega "SaaS MVP" --answer Q1=yes --md plan.md
  haley soundboard run --concept "..." --omega "..." --parallel --provider gpt`,
	RunE: runSoundboard,
}

var soundboardClaimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Print the claims derived from a concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := soundboardInput()
		if err != nil {
			return err
		}
		claims := pipeline.NewPipeline(pipeline.Options{Logger: logger}).Claims(in)
		if len(claims) == 0 {
			return fmt.Errorf("concept and omega are required")
		}
		for _, c := range claims {
			fmt.Printf("%-4s %-6s %-12s %s\n", c.ID, c.Priority, c.Type, c.Statement)
		}
		return nil
	},
}

var soundboardQuestionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Ask the blocking questions for a concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		in, err := soundboardInput()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), sbTimeout)
		defer cancel()

		p, _, err := newSoundboard(ctx, cfg)
		if err != nil {
			return err
		}
		_, result, err := p.Questions(ctx, in)
		if err != nil {
			return err
		}

		for _, q := range result.Questions {
			fmt.Printf("%s (%s, %s) %s\n", q.ID, q.ClaimID, q.Priority, q.Question)
			if len(q.Options) > 0 {
				fmt.Printf("    options: %s\n", strings.Join(q.Options, " / "))
			}
			if q.Why != "" {
				fmt.Printf("    why: %s\n", q.Why)
			}
		}
		if len(result.SkippedClaimIDs) > 0 {
			fmt.Printf("\nNo question needed: %s\n", strings.Join(result.SkippedClaimIDs, ", "))
		}
		return nil
	},
}

var sbConceptFile string

func init() {
	rootCmd.AddCommand(soundboardCmd)
	soundboardCmd.AddCommand(soundboardRunCmd, soundboardClaimsCmd, soundboardQuestionsCmd)

	for _, c := range []*cobra.Command{soundboardRunCmd, soundboardClaimsCmd, soundboardQuestionsCmd} {
		c.Flags().StringVar(&sbConcept, "concept", "", "concept text")
		c.Flags().StringVar(&sbConceptFile, "concept-file", "", "read the concept from a file (text or HTML)")
		c.Flags().StringVar(&sbOmega, "omega", "", "target end state")
		c.Flags().BoolVar(&sbExtract, "extract", false, "add constraint claims found in the concept text")
	}
	for _, c := range []*cobra.Command{soundboardRunCmd, soundboardQuestionsCmd} {
		c.Flags().StringVar(&sbProvider, "provider", "", "LLM provider id (default: soundboard.provider)")
		c.Flags().Float32Var(&sbTemperature, "temperature", 0, "sampling temperature (default: soundboard.temperature)")
		c.Flags().DurationVar(&sbTimeout, "timeout", 10*time.Minute, "overall timeout")
	}

	f := soundboardRunCmd.Flags()
	f.BoolVar(&sbSequential, "sequential", false, "build deltas one at a time in list order")
	f.BoolVar(&sbParallel, "parallel", false, "build every ready delta of a wave concurrently")
	f.BoolVar(&sbSkipBuild, "skip-build", false, "stop after planning deltas")
	f.StringArrayVar(&sbAnswers, "answer", nil, "answer a question, as Q1=value (repeatable)")
	f.StringVar(&sbAnswersFile, "answers", "", "YAML/JSON file of answers")
	f.StringVar(&sbJSON, "json", "", "output JSON path (- for stdout)")
	f.StringVar(&sbMD, "md", "", "output Markdown path (- for stdout)")
	f.BoolVar(&sbNoFooter, "no-footer", false, "disable footer in Markdown reports")
}

func soundboardInput() (pipeline.Input, error) {
	concept := sbConcept
	if sbConceptFile != "" {
		data, err := os.ReadFile(sbConceptFile)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("read concept: %w", err)
		}
		concept = string(data)
	}
	return pipeline.Input{Concept: concept, Omega: sbOmega, Extract: sbExtract || viper.GetBool("soundboard.extract")}, nil
}

// newSoundboard builds a pipeline on the configured provider and returns
// the provider id it resolved
func newSoundboard(ctx context.Context, cfg *model.Config) (*pipeline.Pipeline, string, error) {
	provider := sbProvider
	if provider == "" {
		provider = cfg.Soundboard.Provider
	}
	call, err := newCall(ctx, cfg, provider)
	if err != nil {
		return nil, "", err
	}

	temperature := sbTemperature
	if temperature == 0 {
		temperature = cfg.Soundboard.Temperature
	}

	sequential := cfg.Soundboard.Sequential
	if sbSequential {
		sequential = true
	}
	if sbParallel {
		sequential = false
	}

	return pipeline.NewPipeline(pipeline.Options{
		Call:        call,
		Provider:    provider,
		Temperature: temperature,
		Sequential:  sequential,
		Workers:     cfg.Concurrency.BuildWorkers,
		Metrics:     promMetrics,
		Logger:      logger,
		OnStage: func(stage string) {
			fmt.Fprintf(os.Stderr, "⚙️  %s...\n", stage)
		},
		OnDelta: func(d model.Delta) {
			if verbose {
				fmt.Fprintf(os.Stderr, "   %s %s\n", d.ID, d.Status)
			}
		},
	}), provider, nil
}

func runSoundboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	in, err := soundboardInput()
	if err != nil {
		return err
	}
	in.SkipBuild = sbSkipBuild

	in.Answers, err = loadAnswers(sbAnswersFile, sbAnswers)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sbTimeout)
	defer cancel()

	p, _, err := newSoundboard(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("soundboard failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter && !sbNoFooter)
	renderer.RenderSummary(os.Stderr, report)

	if sbJSON != "" {
		if err := renderer.RenderJSON(report, sbJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	if sbMD != "" {
		if err := renderer.RenderMarkdown(report, sbMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	if sbJSON == "" && sbMD == "" {
		fmt.Print(renderer.Markdown(report))
	}
	return nil
}

// loadAnswers reads answers from a file (a list of {question_id, value} or a
// map of question id to value) and from Q=value flags; flags win
func loadAnswers(path string, flags []string) ([]model.Answer, error) {
	byID := map[string]string{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read answers: %w", err)
		}
		var list []model.Answer
		if err := yaml.Unmarshal(data, &list); err == nil {
			for _, a := range list {
				byID[strings.ToUpper(a.QuestionID)] = a.Value
			}
		} else {
			var m map[string]string
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("parse answers: %w", err)
			}
			for id, v := range m {
				byID[strings.ToUpper(id)] = v
			}
		}
	}

	for _, f := range flags {
		id, value, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid answer %q, want Q1=value", f)
		}
		byID[strings.ToUpper(strings.TrimSpace(id))] = strings.TrimSpace(value)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	answers := make([]model.Answer, 0, len(ids))
	for _, id := range ids {
		answers = append(answers, model.Answer{QuestionID: id, Value: byID[id]})
	}
	return answers, nil
}
