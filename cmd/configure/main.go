package main

import (
	"fmt"
	"os"

	"github.com/benvon/smart-autotrader/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "autotrader-admin",
		Short: "Administration tool for the Smart Auto Trader chat API",
		Long:  "CLI tool for migrating the database, inspecting conversation sessions and trying the parameter extractor",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewContextCmd())
	rootCmd.AddCommand(commands.NewHistoryCmd())
	rootCmd.AddCommand(commands.NewExtractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
