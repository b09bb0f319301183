package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/haleyos/haley/internal/backend"
	"github.com/spf13/cobra"
)

var statusProviders bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show HaleyOS kernel status and provider availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		osClient := backend.NewOSClient(cfg.Backend.OSURL, newHTTPClient(cfg))
		if info, err := osClient.GetOSInfo(ctx); err != nil {
			fmt.Printf("✗ %-12s %v\n", "os", err)
		} else {
			fmt.Printf("✓ %-12s %s %s (%s)\n", "os", info.System, info.Version, info.Kernel)
		}
		if status, err := osClient.GetSystemStatus(ctx); err != nil {
			fmt.Printf("✗ %-12s %v\n", "kernel", err)
		} else {
			k := status.KernelStatus
			fmt.Printf("✓ %-12s %s · %d processes · %d modules · %d syscalls\n",
				"kernel", k.Kernel, k.Processes, k.Modules, k.Syscalls)
		}

		if !statusProviders {
			return nil
		}

		registry := newRegistry(cfg)
		for _, id := range registry.IDs() {
			p, err := registry.Get(ctx, id)
			if err != nil {
				fmt.Printf("✗ %-12s %v\n", id, err)
				continue
			}
			if p.IsAvailable(ctx) {
				fmt.Printf("✓ %-12s available\n", id)
			} else {
				fmt.Printf("✗ %-12s unavailable\n", id)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusProviders, "providers", false, "also check every configured LLM provider")
}
