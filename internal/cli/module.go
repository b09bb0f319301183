package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/modules"
	"github.com/haleyos/haley/internal/pipeline"
	"github.com/haleyos/haley/internal/validate"
	"github.com/spf13/cobra"
)

var (
	moduleParams  string
	moduleNoCache bool
	moduleTimeout time.Duration
	moduleJSON    string

	harvestFile       string
	harvestURL        string
	harvestNoFallback bool

	engTools bool
	engClear bool

	robloxLua        string
	robloxNoFallback bool
)

// moduleCmd represents the module command
var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Call Logic Engine modules",
}

var moduleExecCmd = &cobra.Command{
	Use:   "exec <module> <action>",
	Short: "Execute a module action on the module matrix",
	Long: `Example:
  haley module exec ideaharvester harvest --params '{"post_text":"...","skip_ingest":true}'
  haley module exec engineering clear_history`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		params := map[string]any{}
		if moduleParams != "" {
			if err := json.Unmarshal([]byte(moduleParams), &params); err != nil {
				return fmt.Errorf("parse --params: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), moduleTimeout)
		defer cancel()

		result, err := newModuleClient(cfg, true).Execute(ctx, args[0], args[1], params)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest [post text | -]",
	Short: "Turn a social media post into a module spec",
	Long: `Harvest sends a post to the idea harvester module. When the module is
unreachable a local result is generated from the post text and its links.

Example:
  haley harvest "Someone should build a habit tracker for remote teams"
  haley harvest --file post.txt --json harvest.json
  haley harvest --url https://example.com/post`,
	RunE: runHarvest,
}

var engineeringCmd = &cobra.Command{
	Use:   "engineering [message]",
	Short: "Chat with the engineering assistant module",
	Long: `Example:
  haley engineering "How should I shard this table?"
  haley engineering --tools "Search for rate limiter libraries"
  haley engineering --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), moduleTimeout)
		defer cancel()

		eng := modules.NewEngineering(newModuleClient(cfg, true))
		if engClear {
			if err := eng.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ History cleared")
			if len(args) == 0 {
				return nil
			}
		}

		message, err := readInput(args, "")
		if err != nil {
			return err
		}
		resp, err := eng.Chat(ctx, message, engTools)
		if err != nil {
			return err
		}

		fmt.Println(resp.Response)
		for _, tu := range resp.ToolUses {
			fmt.Fprintf(os.Stderr, "  tool: %s\n", tu.Name)
		}
		if resp.Usage != nil && verbose {
			fmt.Fprintf(os.Stderr, "  tokens: %d in, %d out\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
		return nil
	},
}

var robloxCmd = &cobra.Command{
	Use:   "roblox <description>",
	Short: "Generate a Roblox scene",
	Long: `Example:
  haley roblox "a medieval castle on a hill"
  haley roblox --lua scene.lua --json preview.json "a neon city block"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), moduleTimeout)
		defer cancel()

		r := modules.NewRoblox(newModuleClient(cfg, moduleNoCache), cfg.Modules.Fallback && !robloxNoFallback, logger)
		result, err := r.Generate(ctx, modules.SceneParams{Description: strings.Join(args, " ")})
		if err != nil {
			return err
		}

		if result.Fallback {
			fmt.Fprintln(os.Stderr, "! Roblox expert unavailable, showing a placeholder scene")
		}
		fmt.Fprintf(os.Stderr, "✓ %d elements\n", result.ElementsCreated)

		if moduleJSON != "" {
			if err := writeJSON(moduleJSON, result.PreviewConfig); err != nil {
				return err
			}
		}
		if robloxLua != "" {
			return os.WriteFile(robloxLua, []byte(result.LuaCode), 0o644)
		}
		fmt.Print(result.LuaCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(moduleCmd, harvestCmd, engineeringCmd, robloxCmd)
	moduleCmd.AddCommand(moduleExecCmd)

	moduleExecCmd.Flags().StringVar(&moduleParams, "params", "", "action params as a JSON object")

	for _, c := range []*cobra.Command{moduleExecCmd, harvestCmd, engineeringCmd, robloxCmd} {
		c.Flags().DurationVar(&moduleTimeout, "timeout", 2*time.Minute, "request timeout")
	}
	for _, c := range []*cobra.Command{harvestCmd, robloxCmd} {
		c.Flags().BoolVar(&moduleNoCache, "no-cache", false, "bypass the module response cache")
		c.Flags().StringVar(&moduleJSON, "json", "", "write the result as JSON to this path")
	}

	harvestCmd.Flags().StringVar(&harvestFile, "file", "", "read the post from a file")
	harvestCmd.Flags().StringVar(&harvestURL, "url", "", "fetch the post from a URL")
	harvestCmd.Flags().BoolVar(&harvestNoFallback, "no-fallback", false, "fail instead of generating a local result")

	engineeringCmd.Flags().BoolVar(&engTools, "tools", false, "let the assistant use its tools")
	engineeringCmd.Flags().BoolVar(&engClear, "clear", false, "clear the assistant's history first")

	robloxCmd.Flags().StringVar(&robloxLua, "lua", "", "write the Lua code to this path instead of stdout")
	robloxCmd.Flags().BoolVar(&robloxNoFallback, "no-fallback", false, "fail instead of generating a placeholder scene")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), moduleTimeout)
	defer cancel()

	var post string
	if harvestURL != "" {
		fetcher := pipeline.NewFetcher(newHTTPClient(cfg), cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes)
		res, err := fetcher.FetchWithRetry(ctx, harvestURL)
		if err != nil {
			return err
		}
		post = res.HTML
	} else if post, err = readInput(args, harvestFile); err != nil {
		return err
	}

	h := modules.NewHarvester(modules.HarvesterOptions{
		Client:    newModuleClient(cfg, moduleNoCache),
		Validator: validate.NewValidator(newHTTPClient(cfg), cfg.Concurrency.ValidationWorkers, &cfg.Authority, logger),
		Fallback:  cfg.Modules.Fallback && !harvestNoFallback,
		Logger:    logger,
		OnStep: func(s modules.StepInfo) {
			fmt.Fprintf(os.Stderr, "⚙️  %s\n", s.Label)
		},
	})

	result, err := h.Harvest(ctx, post)
	if err != nil {
		return err
	}

	if result.Fallback {
		fmt.Fprintln(os.Stderr, "! Idea harvester unavailable, generated locally")
	}
	fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", result.IdeaSpec.Title, result.ModuleID)
	fmt.Fprintf(os.Stderr, "✓ %d sources, %d files\n", len(result.SourceManifest.Sources), len(result.GeneratedFiles))

	if moduleJSON != "" {
		return writeJSON(moduleJSON, result)
	}
	return printJSON(result)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
