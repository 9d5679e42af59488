package commands

import (
	"fmt"
	"io"

	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var userID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's recent chat turns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return withDatabase(func(_ *config.Config, db *database.DB) error {
				turns, err := database.NewChatHistoryRepository(db).ListByUser(cmd.Context(), userID, limit)
				if err != nil {
					return fmt.Errorf("failed to list history: %w", err)
				}
				printHistory(cmd.OutOrStdout(), turns)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of turns to show")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printHistory(w io.Writer, turns []*models.ChatTurn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "No chat history")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(w, "%s  [%s]  session %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Outcome, t.SessionID)
		fmt.Fprintf(w, "  user: %s\n", t.UserMessage)
		fmt.Fprintf(w, "  assistant: %s\n", t.AssistantMessage)
		if len(t.ShownVehicleIDs) > 0 {
			fmt.Fprintf(w, "  vehicles: %v\n", t.ShownVehicleIDs)
		}
	}
}
