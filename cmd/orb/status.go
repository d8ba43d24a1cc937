package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devorb/orb/internal/engine"
	"github.com/devorb/orb/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show per-file sync state without changing anything",
	Long: `Compute and print the reconciliation plan.

Nothing is uploaded or written; this is the dry run of "orb sync".
States:
  synced           both sides hold identical content
  local-only       local side is new or newer; a sync would upload
  remote-only      remote side is new or newer; a sync would download
  conflicted       simultaneous edits; "orb resolve" picks a side
  missing-locally  remote env keys under a file this workspace lacks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		eng := app.newEngine(false, nil, nil, cmdLogger())

		items, err := eng.Plan(cmd.Context())
		if err != nil {
			return describeRemoteError(err, app.cfg)
		}

		if len(items) == 0 {
			fmt.Println("No tracked files and no remote records for this scope.")
		}

		counts := map[engine.SyncState]int{}
		for _, item := range items {
			counts[item.State]++
			fmt.Printf("  %-40s %s\n", item.Key, ui.RenderState(string(item.State)))
		}

		fmt.Println()
		fmt.Printf("Scope: %s\n", ui.RenderAccent(app.scope))
		if counts[engine.StateConflicted] > 0 {
			fmt.Printf("%s %d conflict(s); run %s\n",
				ui.RenderWarn("!"), counts[engine.StateConflicted], ui.RenderAccent("orb resolve"))
		}

		if status := app.client.Status(); status.Limited {
			fmt.Printf("%s rate limited until %s\n",
				ui.RenderWarn("!"), status.Until.Format(time.Kitchen))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
