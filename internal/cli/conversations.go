package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/haleyos/haley/internal/migrate"
	"github.com/haleyos/haley/internal/store"
	"github.com/spf13/cobra"
)

var (
	convUser       string
	migrateMessage string
	migrateOut     string
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "List, show and delete saved conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		chats, err := s.LoadAllChats(cmd.Context(), userID(cfg.Backend.UserID))
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Fprintln(os.Stderr, "No saved conversations")
			return nil
		}
		now := time.Now()
		for _, c := range chats {
			fmt.Println(store.Summary(now, c))
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		messages, err := s.LoadChat(cmd.Context(), userID(cfg.Backend.UserID), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", args[0])
		}
		if err != nil {
			return err
		}
		for _, m := range messages {
			fmt.Printf("── %s · %s\n%s\n\n", m.Role, m.Timestamp.Format(time.RFC3339), m.Content)
			if m.Metadata != nil && m.Metadata.IsMultiLLM {
				for _, p := range m.Metadata.Providers {
					fmt.Printf("   [%s] %s\n", p, oneLine(m.Metadata.ProviderResponses[p]))
				}
				fmt.Println()
			}
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if err := s.DeleteChat(cmd.Context(), userID(cfg.Backend.UserID), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Deleted %s\n", args[0])
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <conversation-id>",
	Short: "Export a saved conversation as an AI-agnostic summary",
	Long: `Migrate summarizes a conversation (or one message of it) into a JSON
payload that can be pasted into any other assistant.

Example:
  haley migrate conv_1712345678901_abc123def
  haley migrate conv_1712345678901_abc123def --message msg_42 --out summary.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		messages, err := s.LoadChat(cmd.Context(), userID(cfg.Backend.UserID), args[0])
		if err != nil {
			return err
		}

		payload := migrate.MigrateFullChat(messages)
		if migrateMessage != "" {
			found := false
			for _, m := range messages {
				if m.ID == migrateMessage {
					payload = migrate.MigrateSingleMessage(m)
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("message %s not found in %s", migrateMessage, args[0])
			}
		}

		data, err := payload.JSON()
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if migrateOut != "" {
			return os.WriteFile(migrateOut, data, 0o644)
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd, migrateCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsDeleteCmd)

	conversationsCmd.PersistentFlags().StringVar(&convUser, "user", "", "user id (default: backend.user_id)")
	migrateCmd.Flags().StringVar(&convUser, "user", "", "user id (default: backend.user_id)")
	migrateCmd.Flags().StringVar(&migrateMessage, "message", "", "migrate only this message")
	migrateCmd.Flags().StringVar(&migrateOut, "out", "", "write the payload to this path")
}

func userID(fallback string) string {
	if convUser != "" {
		return convUser
	}
	return fallback
}
