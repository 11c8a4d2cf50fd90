package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/render"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/spf13/cobra"
)

var (
	conversationTitle string
	conversationModel string
	forceDelete       bool
)

// conversationsCmd represents the conversations command
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
	Long: `Manage conversations including creating, listing, viewing, renaming and deleting them.

Conversation IDs can be given as a prefix (minimum 4 characters), the full ID,
or "latest" for the most recently updated conversation.`,
}

// conversationsListCmd represents the conversations list command
var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Long:  `List all conversations sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			conversations, err := backend.ListConversations(ctx)
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			fmt.Println(r.Conversations(conversations))
			if len(conversations) == 0 {
				fmt.Println(r.Dim("\nStart one with:\n  lome chat \"your message\""))
				return nil
			}
			fmt.Println(r.Dim("\nUse 'lome conversations show <id>' to view a conversation."))
			return nil
		})
	},
}

// conversationsNewCmd represents the conversations new command
var conversationsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			model, err := resolveModelFlag(conversationModel)
			if err != nil {
				return err
			}
			conv, err := backend.CreateConversation(ctx, conversationTitle, model)
			if err != nil {
				return fmt.Errorf("creating conversation: %w", err)
			}
			fmt.Printf("Conversation created: %s\n", conv.ShortID())
			fmt.Printf("\nContinue it with:\n  lome chat -c %s\n", conv.ShortID())
			return nil
		})
	},
}

// conversationsShowCmd represents the conversations show command
var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			conv, err := backend.FindConversation(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}
			messages, err := backend.Messages(ctx, conv.ID)
			if err != nil {
				return fmt.Errorf("fetching messages: %w", err)
			}

			fmt.Println(r.Conversation(conv, len(messages)))
			fmt.Println()
			if len(messages) == 0 {
				fmt.Println("No messages in this conversation.")
				return nil
			}
			fmt.Print(r.Entries(chat.Reconcile(conv.ID, messages, nil, nil)))

			fmt.Println(r.Dim(fmt.Sprintf("\nContinue this conversation with:\n  lome chat -c %s \"your message\"", conv.ShortID())))
			return nil
		})
	},
}

// conversationsDeleteCmd represents the conversations delete command
var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation and its messages permanently.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			conv, err := backend.FindConversation(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}

			if !forceDelete {
				fmt.Printf("Are you sure you want to delete conversation %s (%s)? [y/N]: ", conv.ShortID(), conv.DisplayName())
				var response string
				fmt.Scanln(&response)

				if response != "y" && response != "Y" {
					fmt.Println("Deletion cancelled.")
					return nil
				}
			}

			if err := backend.DeleteConversation(ctx, conv.ID); err != nil {
				return fmt.Errorf("deleting conversation: %w", err)
			}

			fmt.Printf("Conversation %s deleted successfully.\n", conv.ShortID())
			return nil
		})
	},
}

// conversationsRenameCmd represents the conversations rename command
var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			conv, err := backend.FindConversation(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}

			title := args[1]
			conv, err = backend.UpdateConversation(ctx, conv.ID, service.ConversationUpdate{Title: &title})
			if err != nil {
				return fmt.Errorf("renaming conversation: %w", err)
			}

			fmt.Printf("Conversation %s renamed to %q.\n", conv.ShortID(), conv.Title)
			return nil
		})
	},
}

// withBackend loads the configuration, opens the backend, checks the session
// and runs fn, printing a styled error with hints when it fails
func withBackend(ctx context.Context, fn func(ctx context.Context, backend conversationBackend, r *render.Renderer) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r := render.ForTerminal(os.Stdout)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	backend, closeFn, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := requireUser(ctx, backend); err != nil {
		fmt.Fprintln(os.Stderr, r.Error(err.Error(), "lome token --email you@dev.lome-chat.com", "lome config session_token"))
		return err
	}

	err = fn(ctx, backend, r)
	var ambiguous *store.AmbiguousIDError
	switch {
	case errors.As(err, &ambiguous):
		fmt.Fprintln(os.Stderr, r.Error(err.Error(), "use a longer prefix", "lome conversations list"))
	case errors.Is(err, store.ErrProjectNotFound):
		fmt.Fprintln(os.Stderr, r.Error(err.Error(), "lome projects list"))
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(os.Stderr, r.Error(err.Error(), "lome conversations list"))
	}
	return err
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsNewCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)

	conversationsNewCmd.Flags().StringVarP(&conversationTitle, "title", "t", "", "Title of the conversation (defaults to the first message)")
	conversationsNewCmd.Flags().StringVarP(&conversationModel, "model", "m", "", "Model to use (vendor/model, or 'strongest' / 'value')")
	conversationsDeleteCmd.Flags().BoolVarP(&forceDelete, "force", "f", false, "Delete without confirmation")
}
