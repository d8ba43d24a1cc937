package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorb/orb/internal/config"
	"github.com/devorb/orb/internal/engine"
	"github.com/devorb/orb/internal/gist"
	"github.com/devorb/orb/internal/ui"
	"github.com/devorb/orb/internal/vault"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile the workspace against the remote vault",
	Long: `Run one reconciliation pass.

Tracked files newer than their remote records are uploaded; records
newer than the local files are written back. Files that differ but were
edited at effectively the same time are reported as conflicts; run
"orb resolve" to pick a side interactively.

Remote records with no local counterpart are skipped unless
--create-missing is given (or sync.auto_create is set in the config).

Example usage:
  orb sync                       # the whole workspace
  orb sync --file .env.staging   # just one file
  orb sync --create-missing      # also materialize remote-only files
  orb sync --tool-config         # mirror assistant/editor config blobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		toolConfig, _ := cmd.Flags().GetBool("tool-config")
		if toolConfig {
			return runToolConfigSync(cmd.Context())
		}

		app, err := buildApp()
		if err != nil {
			return err
		}

		createMissing, _ := cmd.Flags().GetBool("create-missing")
		file, _ := cmd.Flags().GetString("file")

		eng := app.newEngine(createMissing, nil, nil, cmdLogger())

		spin, done := ui.StartSpinner("Syncing...")

		var result *engine.Result
		if file != "" {
			result, err = eng.SyncPath(cmd.Context(), file)
		} else {
			result, err = eng.Sync(cmd.Context())
		}
		if err != nil {
			spin.FinalMSG = ui.RenderFail("✗ Sync failed")
			done()
			return describeRemoteError(err, app.cfg)
		}

		spin.FinalMSG = ui.RenderPass("✓ Sync complete")
		done()

		printResult(result)
		return nil
	},
}

// printResult prints the pass summary and any items needing attention.
func printResult(result *engine.Result) {
	fmt.Printf("  %d uploaded, %d downloaded, %d in sync, %d skipped\n",
		result.Uploaded, result.Downloaded, result.Synced, result.Skipped)

	if result.Conflicted > 0 {
		fmt.Printf("  %s: %d conflict(s); run %s\n",
			ui.RenderWarn("attention"), result.Conflicted, ui.RenderAccent("orb resolve"))
	}
	if result.Failed > 0 {
		fmt.Printf("  %s: %d item(s) failed, see log output\n",
			ui.RenderFail("errors"), result.Failed)
	}
}

// runToolConfigSync mirrors tool-config blobs against the gist store,
// persisting the container id when this pass created it.
func runToolConfigSync(ctx context.Context) error {
	store, err := config.Init(cfgFile)
	if err != nil {
		return err
	}
	cfg := store.Config()

	client, err := gist.NewClient(gist.ClientConfig{
		Address: cfg.GistAddress,
		Token:   store.GistToken(),
	})
	if err != nil {
		return fmt.Errorf("%w\n\nSet gist.address in %s and export the token in $%s",
			err, store.Path(), cfg.GistTokenEnv)
	}

	root := workspaceFlag
	id, result, err := gist.Sync(ctx, client, gist.SyncOptions{
		Root:        root,
		ContainerID: cfg.GistContainerID,
	})
	if err != nil {
		return err
	}

	if id != cfg.GistContainerID {
		if err := store.SetGistContainerID(id); err != nil {
			return err
		}
	}

	fmt.Printf("%s %d pushed, %d pulled, %d unchanged\n",
		ui.RenderPass("✓"), result.Pushed, result.Pulled, result.Unchanged)
	return nil
}

// describeRemoteError attaches an actionable remedy to the well-known
// failure modes.
func describeRemoteError(err error, cfg *config.Config) error {
	switch {
	case errors.Is(err, vault.ErrVaultNotFound):
		return fmt.Errorf("%w\n\nCreate a vault named %q in your secret store (or share it with this account), then retry",
			err, vault.VaultName)
	case errors.Is(err, vault.ErrUnauthorized):
		return fmt.Errorf("%w\n\nCheck the token in $%s", err, cfg.VaultTokenEnv)
	case errors.Is(err, vault.ErrRateLimited):
		return fmt.Errorf("%w\n\nThe store is throttling; orb will back off, just retry in a minute", err)
	}
	return err
}

func init() {
	syncCmd.Flags().String("file", "", "Sync only this workspace-relative file")
	syncCmd.Flags().Bool("create-missing", false, "Materialize remote-only records as local files")
	syncCmd.Flags().Bool("tool-config", false, "Sync assistant/editor config files via the gist store instead")

	rootCmd.AddCommand(syncCmd)
}
