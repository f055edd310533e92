// ABOUTME: Entry point for the explainit CLI
// ABOUTME: Runs the gateway and the terminal front ends (ask, panel) plus history, favorites and settings management

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var version = "dev"

const banner = `
                 _       _       _ _
  _____  ___ __ | | __ _(_)_ __ (_) |_
 / _ \ \/ / '_ \| |/ _' | | '_ \| | __|
|  __/>  <| |_) | | (_| | | | | | | |_
 \___/_/\_\ .__/|_|\__,_|_|_| |_|_|\__|
          |_|
`

// configPath overrides config resolution when set with --config.
var configPath string

var rootCmd = &cobra.Command{
	Use:           "explainit",
	Short:         "Explain selected text with your own LLM provider key",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $EXPLAINIT_CONFIG or ~/.config/explainit/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
