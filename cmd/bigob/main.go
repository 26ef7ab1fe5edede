package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "bigob",
	Short:   "BigO Board — a kanban board with an asynchronous AI chat bridge",
	Version: version,
	Long: `BigO Board — a kanban board with an asynchronous AI chat bridge.

The server exposes the card API, relays chat messages to the Orbit
assistant, and receives replies through a webhook. The CLI talks to the
running server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dataCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
