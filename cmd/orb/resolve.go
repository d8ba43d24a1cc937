package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorb/orb/internal/ui"
)

var resolveCmd = &cobra.Command{
	Use:     "resolve",
	GroupID: "sync",
	Short:   "Resolve conflicts interactively",
	Long: `Run a reconciliation pass that stops at each conflict and asks.

For every file (or env key) edited on both sides at effectively the
same time, both versions are shown and you pick one: keep local, keep
remote, or decide later. Everything that is not conflicted syncs the
same way "orb sync" would.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.Interactive() {
			return fmt.Errorf("orb resolve needs an interactive terminal")
		}

		app, err := buildApp()
		if err != nil {
			return err
		}

		eng := app.newEngine(false, ui.ConsolePrompter{}, nil, cmdLogger())

		result, err := eng.Sync(cmd.Context())
		if err != nil {
			return describeRemoteError(err, app.cfg)
		}

		if result.Conflicted == 0 {
			fmt.Println(ui.RenderPass("✓ No conflicts remain"))
		} else {
			fmt.Printf("%s %d conflict(s) deferred\n", ui.RenderWarn("!"), result.Conflicted)
		}
		printResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
