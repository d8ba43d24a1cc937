package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	workspaceFlag string
	modeFlag      string
	verboseFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "orb",
	Short: "Two-way sync between local env files and your team's secret vault",
	Long: `orb mirrors tracked workspace files against a shared remote vault.

Env files (and, optionally, individual variables inside them) are
reconciled both ways: newer local edits are uploaded, newer remote edits
are written back, and simultaneous edits are surfaced for a human to
resolve. Nothing is journaled locally; every pass re-derives its state
from the files and one remote listing.

Typical workflow:
  orb setup                      # point orb at your vault, once
  orb sync                       # reconcile the current workspace
  orb watch                      # keep reconciling as files change
  orb status                     # see per-file sync state

Records are scoped per repository, so one vault serves every project.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: user config dir, devorb/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "C", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "sync flavor override: file or env")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log every reconciliation decision to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration Commands:"},
	)
}
