package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haleyos/haley/internal/keys"
	"github.com/spf13/cobra"
)

var keyValue string

// keysEnv maps a service to the environment variable holding its key
var keysEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"replicate":  "REPLICATE_API_TOKEN",
	"elevenlabs": "ELEVENLABS_API_KEY",
	"stability":  "STABILITY_API_KEY",
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys",
}

var keysTestCmd = &cobra.Command{
	Use:   "test [service...]",
	Short: "Check that API keys are accepted",
	Long: `Test sends a cheap authenticated request to each service.
Keys come from --key or the service's environment variable.

Example:
  haley keys test openai
  haley keys test anthropic --key sk-ant-...
  haley keys test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tester := keys.NewTester(nil, newHTTPClient(cfg), logger)

		services := args
		if len(services) == 0 {
			services = tester.Services()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		failed := 0
		for _, service := range services {
			key := keyValue
			if key == "" {
				key = os.Getenv(keysEnv[strings.ToLower(service)])
			}
			result, err := tester.Test(ctx, service, key)
			if err != nil {
				return err
			}

			switch {
			case !result.Success:
				failed++
				fmt.Printf("✗ %-11s %s\n", result.Service, result.Error)
			case result.Demo:
				fmt.Printf("- %-11s no key set\n", result.Service)
			case result.Message != "":
				fmt.Printf("✓ %-11s %s\n", result.Service, result.Message)
			default:
				fmt.Printf("✓ %-11s ok\n", result.Service)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d key checks failed", failed, len(services))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysTestCmd)
	keysTestCmd.Flags().StringVar(&keyValue, "key", "", "API key to test (default: from the environment)")
}
