package commands

import (
	"fmt"

	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Create the sessions, chat history and vehicle tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(_ *config.Config, db *database.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("failed to migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Schema is up to date")
				return nil
			})
		},
	}
}
