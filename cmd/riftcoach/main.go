package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biodoia/goriftcoach/cmd/riftcoach/commands"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "riftcoach",
		Short: "RiftCoach - Match analysis pipeline",
		Long: `RiftCoach - Asynchronous match analysis for chat

A chat-triggered pipeline that fetches match data from the game vendor,
computes multi-dimensional performance scores per game mode, generates a
coaching narrative and delivers it back to the deferred chat reply.

Components:
  • Dispatcher: HTTP front for chat interactions
  • Worker: queue consumers running the five-stage analysis task
  • Store: relational persistence with idempotent upserts`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.WorkerCmd)
	rootCmd.AddCommand(commands.MigrateCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RiftCoach version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
