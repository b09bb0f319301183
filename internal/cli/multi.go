package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/fanout"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/worker"
	"github.com/spf13/cobra"
)

var (
	multiProviders string
	multiSummarize bool
	multiRetry     bool
	multiJSON      string
	multiSave      bool
	multiTimeout   time.Duration
)

// multiCmd represents the multi command
var multiCmd = &cobra.Command{
	Use:   "multi <prompt>",
	Short: "Send one prompt to several LLM providers at once",
	Long: `Multi streams the prompt to every selected provider concurrently.
A failing provider never stops the others; its response becomes "Error: <msg>".

Example:
  haley multi "Compare Postgres and SQLite for a CLI"
  haley multi --providers gpt,claude,llama --summarize "Explain CRDTs"
  haley multi --retry --json fanout.json "Name three sorting algorithms"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMulti,
}

func init() {
	rootCmd.AddCommand(multiCmd)

	multiCmd.Flags().StringVar(&multiProviders, "providers", "", "comma separated provider ids (default: fanout.providers)")
	multiCmd.Flags().BoolVar(&multiSummarize, "summarize", false, "compare the responses with the summary provider")
	multiCmd.Flags().BoolVar(&multiRetry, "retry", false, "retry each failed provider once")
	multiCmd.Flags().StringVar(&multiJSON, "json", "", "write the fan-out message as JSON to this path")
	multiCmd.Flags().BoolVar(&multiSave, "save", false, "save the conversation to the local store")
	multiCmd.Flags().DurationVar(&multiTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func newOrchestrator(cfg *model.Config) *fanout.Orchestrator {
	return fanout.New(fanout.Options{
		Providers:   newRegistry(cfg),
		Concurrency: cfg.Concurrency.Workers,
		Limiter:     newFanoutLimiter(cfg.Fanout),
		Metrics:     promMetrics,
		Logger:      logger,
	})
}

func newFanoutLimiter(fc model.FanoutConfig) *worker.Limiter {
	limiter := worker.NewLimiter(fc.RequestsPerSecond, fc.BurstSize)
	for id, rl := range fc.RateLimits {
		limiter.SetRate(strings.ToLower(id), rl.RequestsPerSecond, rl.BurstSize)
	}
	return limiter
}

func runMulti(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	providers := splitList(multiProviders)
	if len(providers) == 0 {
		providers = cfg.Fanout.Providers
	}

	prompt, err := readInput(args, "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), multiTimeout)
	defer cancel()

	o := newOrchestrator(cfg)

	fmt.Fprintf(os.Stderr, "⚙️  Streaming to %s...\n", strings.Join(providers, ", "))
	msg, err := o.Run(ctx, prompt, providers)
	if err != nil {
		return err
	}

	if multiRetry {
		for _, p := range msg.Metadata.Providers {
			if !strings.HasPrefix(msg.Metadata.ProviderResponses[p], "Error: ") {
				continue
			}
			fmt.Fprintf(os.Stderr, "⚙️  Retrying %s...\n", p)
			if msg, err = o.Retry(ctx, msg.ID, p); err != nil {
				return err
			}
		}
	}

	for _, p := range msg.Metadata.Providers {
		fmt.Printf("\n═══ %s ═══\n%s\n", strings.ToUpper(p), msg.Metadata.ProviderResponses[p])
	}

	if multiSummarize {
		fmt.Printf("\n═══ SUMMARY (%s) ═══\n", cfg.Fanout.SummaryProvider)
		_, err := o.Summarize(ctx, msg.ID, cfg.Fanout.SummaryProvider, func(delta string) {
			fmt.Print(delta)
		})
		fmt.Println()
		if errors.Is(err, fanout.ErrNoCompleteFanout) {
			fmt.Println("No multi-LLM responses found to summarize.")
		} else if err != nil {
			return err
		}
	}

	if multiJSON != "" {
		data, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fan-out: %w", err)
		}
		if err := os.WriteFile(multiJSON, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", multiJSON, err)
		}
	}

	if multiSave {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		chatID := "multi_" + msg.ID
		if err := s.SaveChat(ctx, cfg.Backend.UserID, chatID, o.Messages(), "multi"); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Saved conversation %s\n", chatID)
	}

	return nil
}
