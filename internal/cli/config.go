package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/haleyos/haley/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (HALEY_*, e.g. HALEY_BACKEND_CHAT_URL)
  3. Config file (~/.haley/config.yaml)
  4. Defaults`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Haley configuration",
	Long:  "Manage Haley configuration files and settings.\n\n" + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, the config file and HALEY_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		// API keys never leave the process
		for id, pc := range cfg.Providers {
			if pc.APIKey != "" {
				pc.APIKey = "********"
				cfg.Providers[id] = pc
			}
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(string(yamlData))
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(configHierarchy)
		fmt.Println()
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.haley/config.yaml containing every option with its default value.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".haley")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'haley config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...any) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# Haley configuration\n#\n")
		for _, line := range []string{
			"# Configuration hierarchy (highest to lowest priority):",
			"#   1. CLI flags",
			"#   2. Environment variables (HALEY_*)",
			"#   3. This config file",
			"#   4. Built-in defaults",
		} {
			printf("%s\n", line)
		}
		printf("\n%s", yamlData)
		printf("\n# API keys are better kept in the environment or a .env file:\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		printf("#   export GEMINI_API_KEY=...\n")
		printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")
		if err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n  haley config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n  $EDITOR %s\n\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
