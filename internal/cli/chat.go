package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/haleyos/haley/internal/backend"
	"github.com/haleyos/haley/internal/model"
	"github.com/spf13/cobra"
)

var (
	chatProvider     string
	chatIntent       string
	chatConversation string
	chatSave         bool
	chatHistory      int
	chatTimeout      time.Duration
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the Haley chat backend and stream the reply",
	Long: `Chat submits a message to the chat backend queue and streams the
assistant reply token by token.

Example:
  haley chat "What is a vector database?"
  haley chat --provider claude --save "Plan a habit tracker"
  haley chat --conversation conv_123 --history 20`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "backend provider (empty lets the backend choose)")
	chatCmd.Flags().StringVar(&chatIntent, "intent", "chat.message", "message intent")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "conversation id (default: new conversation)")
	chatCmd.Flags().BoolVar(&chatSave, "save", false, "save the conversation to the local store")
	chatCmd.Flags().IntVar(&chatHistory, "history", 0, "print the last N messages of the conversation instead of sending")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 5*time.Minute, "time to wait for the reply")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), chatTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		printed = map[string]int{}
	)
	client := backend.NewClient(backend.Options{
		BaseURL:        cfg.Backend.ChatURL,
		ConversationID: chatConversation,
		UserID:         cfg.Backend.UserID,
		HTTPClient:     newHTTPClient(cfg),
		Logger:         logger,
		OnMessage: func(m model.Message) {
			if m.Role != model.RoleAssistant {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if m.Status == model.StatusFailed {
				fmt.Fprintln(os.Stderr, m.Content)
				printed[m.ID] = len(m.Content)
				return
			}
			if n := printed[m.ID]; len(m.Content) > n {
				fmt.Print(m.Content[n:])
				printed[m.ID] = len(m.Content)
			}
		},
		OnStatusChange: func(m model.Message) {
			if verbose {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", m.ID, m.Status)
			}
		},
	})
	defer client.CloseAllStreams()

	if chatHistory > 0 {
		return printHistory(ctx, client, chatHistory)
	}

	text, err := readInput(args, "")
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message is required")
	}

	resp, err := client.SubmitMessage(ctx, text, backend.SubmitOptions{Intent: chatIntent, Provider: chatProvider})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Queued %s in %s\n", resp.AssistantMessageID, client.ConversationID())
	}

	reply, err := client.Wait(ctx, resp.AssistantMessageID)
	if err != nil {
		return err
	}
	fmt.Println()

	if chatSave {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		if err := s.SaveChat(ctx, cfg.Backend.UserID, client.ConversationID(), client.Messages(), chatProvider); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Saved conversation %s\n", client.ConversationID())
	}

	if reply.Status == model.StatusFailed {
		return fmt.Errorf("reply failed")
	}
	return nil
}

func printHistory(ctx context.Context, client *backend.Client, limit int) error {
	messages, err := client.GetConversationHistory(ctx, limit)
	if err != nil {
		return err
	}
	for _, m := range messages {
		fmt.Printf("%s %s: %s\n", m.Timestamp.Format(time.RFC3339), m.Role, m.Content)
	}
	return nil
}
