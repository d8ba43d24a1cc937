package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devorb/orb/internal/gitops"
	"github.com/devorb/orb/internal/logging"
	"github.com/devorb/orb/internal/scheduler"
	"github.com/devorb/orb/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Watch the workspace and sync changes as they happen",
	Long: `Run an initial full pass, then keep reconciling on file changes.

Change bursts are debounced per file, so a save storm becomes one sync.
The watcher ignores the echo of orb's own writes. Local deletions are
classified first: files removed by a git operation (merge, rebase,
branch switch) keep their remote records untouched; deleting a file
yourself prompts before the remote copy is removed.

Set watch.log_file in the config to log to a rotating file instead of
stderr.

Example usage:
  orb watch
  orb watch --create-missing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		createMissing, _ := cmd.Flags().GetBool("create-missing")
		logger := logging.ForWatch("[watch] ", app.cfg.LogFile)

		// The engine announces its writes to the scheduler, which does
		// not exist yet; the closure resolves the cycle.
		var sched *scheduler.Scheduler
		onWrite := func(rel string) {
			if sched != nil {
				sched.MarkSelfWrite(rel)
			}
		}

		var prompter ui.ConsolePrompter
		eng := app.newEngine(createMissing, prompter, onWrite, logger)

		classifier := gitops.New(app.root, logger)

		sched, err = scheduler.New(app.root, app.manifest, eng, classifier, prompter, &scheduler.Config{
			Debounce:       app.cfg.Debounce,
			SuppressWindow: app.cfg.SuppressWindow,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		classifier.Start(ctx)
		defer classifier.Stop()

		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		fmt.Printf("%s %s\n", ui.RenderPass("Watching"), app.root)
		fmt.Println("Press Ctrl+C to stop...")

		sched.RequestFullSync(ctx)

		<-ctx.Done()
		fmt.Println("\nStopping...")
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("create-missing", false, "Materialize remote-only records as local files")
	rootCmd.AddCommand(watchCmd)
}
