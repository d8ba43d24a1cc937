package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/devorb/orb/internal/config"
	"github.com/devorb/orb/internal/ui"
	"github.com/devorb/orb/internal/vault"
)

var setupCmd = &cobra.Command{
	Use:     "setup",
	GroupID: "config",
	Short:   "Configure the vault connection and verify it",
	Long: `Interactive first-run setup.

Asks for the secret store address and the name of the environment
variable your access token lives in (the token itself is never written
to the config file), saves both, then verifies the connection by
discovering the shared vault. The discovered vault id is persisted so
later runs skip the lookup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.Interactive() {
			return fmt.Errorf("orb setup needs an interactive terminal; edit the config file directly instead")
		}

		store, err := config.Init(cfgFile)
		if err != nil {
			return err
		}
		cfg := store.Config()

		address := cfg.VaultAddress
		tokenEnv := cfg.VaultTokenEnv

		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Secret store address").
				Description("Base URL of the store's REST API").
				Placeholder("https://vault.example.com").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}).
				Value(&address),
			huh.NewInput().
				Title("Token environment variable").
				Description("Name of the env var holding your access token").
				Value(&tokenEnv),
		))
		if err := form.RunWithContext(cmd.Context()); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		if err := store.Set("vault.address", strings.TrimSpace(address)); err != nil {
			return err
		}
		if err := store.Set("vault.token_env", strings.TrimSpace(tokenEnv)); err != nil {
			return err
		}
		fmt.Printf("%s Saved %s\n", ui.RenderPass("✓"), store.Path())

		token := os.Getenv(strings.TrimSpace(tokenEnv))
		if token == "" {
			fmt.Printf("%s $%s is not set; export your token and run `orb status` to verify\n",
				ui.RenderWarn("!"), strings.TrimSpace(tokenEnv))
			return nil
		}

		rest, err := vault.NewRESTClient(vault.ClientConfig{
			Address: strings.TrimSpace(address),
			Token:   token,
		})
		if err != nil {
			return err
		}
		client := vault.NewRateLimitedClient(rest, 0, 0, nil)
		resolver := vault.NewResolver(client, store, 0, nil)

		spin, done := ui.StartSpinner("Looking for the shared vault...")
		vaultID, err := resolver.Resolve(cmd.Context())
		if err != nil {
			spin.FinalMSG = ui.RenderFail("✗ Vault discovery failed")
			done()
			return describeRemoteError(err, store.Config())
		}
		spin.FinalMSG = ui.RenderPass("✓ Connected")
		done()

		fmt.Printf("  Vault %s discovered and saved\n", ui.RenderAccent(vaultID))
		fmt.Printf("  Run %s to see what would sync\n", ui.RenderAccent("orb status"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
