package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/fanout"
	"github.com/haleyos/haley/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency    int
	outputDir      string
	batchTimeout   time.Duration
	batchProviders string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Fan out every prompt in a file",
	Long: `Batch reads prompts from a file (one per line, # comments allowed),
fans each one out to the selected providers and writes one Markdown file
per prompt.

Example:
  haley batch prompts.txt
  haley batch prompts.txt --concurrency 4 --providers gpt,claude --output-dir ./answers`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of prompts processed at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./haley-batch", "output directory for responses")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchProviders, "providers", "", "comma separated provider ids (default: fanout.providers)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	providers := splitList(batchProviders)
	if len(providers) == 0 {
		providers = cfg.Fanout.Providers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Haley Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Providers:    %s\n", strings.Join(providers, ", "))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	runner := &fanout.BatchRunner{Orchestrator: newOrchestrator(cfg), Providers: providers}
	processor := worker.NewBatchProcessor(runner, concurrency, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", oneLine(result.Prompt), result.Error)
			continue
		}

		path := filepath.Join(outputDir, fmt.Sprintf("%03d-%s.md", result.Index+1, sanitizeFilename(result.Prompt)))
		if err := os.WriteFile(path, []byte(batchMarkdown(result.Prompt, result.Responses)), 0o644); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write: %v\n", oneLine(result.Prompt), err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s\n", oneLine(result.Prompt))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d prompts\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func batchMarkdown(prompt string, responses map[string]string) string {
	providers := make([]string, 0, len(responses))
	for p := range responses {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", oneLine(prompt))
	for _, p := range providers {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", strings.ToUpper(p), responses[p])
	}
	return b.String()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return s
}

// sanitizeFilename turns a prompt into a short file name
func sanitizeFilename(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "prompt"
	}
	return name
}
