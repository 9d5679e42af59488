package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/services/conversation"
	"github.com/spf13/cobra"
)

// NewContextCmd creates the context command
func NewContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect or reset a user's conversation session",
	}
	cmd.AddCommand(newContextShowCmd(), newContextResetCmd())
	return cmd
}

func newContextShowCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored conversation context for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(cfg *config.Config, db *database.DB) error {
				repo, closeRepo, err := contextRepository(cfg, db)
				if err != nil {
					return err
				}
				defer closeRepo()

				if _, err := repo.Load(cmd.Context(), userID); err != nil {
					if errors.Is(err, models.ErrContextNotFound) {
						fmt.Fprintf(cmd.OutOrStdout(), "No session stored for user %s\n", userID)
						return nil
					}
					return fmt.Errorf("failed to load context: %w", err)
				}

				store := conversation.NewStore(repo, conversation.StoreConfig{IdleTimeout: cfg.SessionIdleTimeout}, nil)
				printContext(cmd.OutOrStdout(), store.GetOrCreate(cmd.Context(), userID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newContextResetCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard a user's session and start a new empty one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(cfg *config.Config, db *database.DB) error {
				repo, closeRepo, err := contextRepository(cfg, db)
				if err != nil {
					return err
				}
				defer closeRepo()

				store := conversation.NewStore(repo, conversation.StoreConfig{IdleTimeout: cfg.SessionIdleTimeout}, nil)
				cc, err := store.Reset(cmd.Context(), userID)
				if err != nil {
					return fmt.Errorf("failed to reset context: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ New session %s for user %s\n", cc.SessionID, userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// printContext writes a human-readable summary of cc
func printContext(w io.Writer, cc *models.ConversationContext) {
	fmt.Fprintf(w, "Session: %s\n", cc.SessionID)
	fmt.Fprintf(w, "  Messages: %d\n", cc.MessageCount)
	fmt.Fprintf(w, "  Last interaction: %s\n", cc.LastInteraction.Format("2006-01-02 15:04:05 MST"))
	if cc.ModelUsed != "" {
		fmt.Fprintf(w, "  Model: %s\n", cc.ModelUsed)
	}
	if cc.LastUserIntent != "" {
		fmt.Fprintf(w, "  Last intent: %s\n", cc.LastUserIntent)
	}
	fmt.Fprintf(w, "  Parameters: %s\n", criteriaSummary(cc.CurrentParameters))
	fmt.Fprintf(w, "  Rejected: %s\n", rejectionSummary(cc.Rejected))
	if len(cc.PendingClarification) > 0 {
		fields := make([]string, 0, len(cc.PendingClarification))
		for _, f := range cc.PendingClarification {
			fields = append(fields, string(f))
		}
		fmt.Fprintf(w, "  Waiting on: %s\n", strings.Join(fields, ", "))
	}
	if cc.LastQuestionAskedByAI != "" {
		fmt.Fprintf(w, "  Last question: %s\n", cc.LastQuestionAskedByAI)
	}
	fmt.Fprintf(w, "  Vehicles shown: %d\n", len(cc.ShownItemIDs))
}

func criteriaSummary(c models.Criteria) string {
	if c.IsEmpty() {
		return "(none)"
	}
	var parts []string
	if c.MinPrice != nil || c.MaxPrice != nil {
		parts = append(parts, "price "+rangeOf(c.MinPrice, c.MaxPrice))
	}
	if c.MinYear != nil || c.MaxYear != nil {
		parts = append(parts, "year "+rangeOf(c.MinYear, c.MaxYear))
	}
	if c.MaxMileage != nil {
		parts = append(parts, fmt.Sprintf("mileage ≤ %d", *c.MaxMileage))
	}
	if c.MinEngineSize != nil || c.MaxEngineSize != nil {
		parts = append(parts, "engine "+rangeOf(c.MinEngineSize, c.MaxEngineSize))
	}
	if c.MinHorsepower != nil || c.MaxHorsepower != nil {
		parts = append(parts, "hp "+rangeOf(c.MinHorsepower, c.MaxHorsepower))
	}
	if c.Transmission != nil {
		parts = append(parts, "transmission "+string(*c.Transmission))
	}
	if len(c.Makes) > 0 {
		parts = append(parts, "makes "+strings.Join(c.Makes, "/"))
	}
	if len(c.VehicleTypes) > 0 {
		parts = append(parts, "types "+joinStrings(c.VehicleTypes))
	}
	if len(c.FuelTypes) > 0 {
		parts = append(parts, "fuel "+joinStrings(c.FuelTypes))
	}
	if len(c.Features) > 0 {
		parts = append(parts, "features "+strings.Join(c.Features, "/"))
	}
	return strings.Join(parts, "; ")
}

func rejectionSummary(r models.Rejections) string {
	if r.IsEmpty() {
		return "(none)"
	}
	var parts []string
	if len(r.Makes) > 0 {
		parts = append(parts, "makes "+strings.Join(r.Makes, "/"))
	}
	if len(r.VehicleTypes) > 0 {
		parts = append(parts, "types "+joinStrings(r.VehicleTypes))
	}
	if len(r.FuelTypes) > 0 {
		parts = append(parts, "fuel "+joinStrings(r.FuelTypes))
	}
	if len(r.Features) > 0 {
		parts = append(parts, "features "+strings.Join(r.Features, "/"))
	}
	if r.Transmission != nil {
		parts = append(parts, "transmission "+string(*r.Transmission))
	}
	return strings.Join(parts, "; ")
}

func rangeOf[T int | float64](lo, hi *T) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%v-%v", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("≥ %v", *lo)
	default:
		return fmt.Sprintf("≤ %v", *hi)
	}
}

func joinStrings[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, "/")
}
