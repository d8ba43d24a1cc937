package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/devorb/orb/internal/config"
	"github.com/devorb/orb/internal/engine"
	"github.com/devorb/orb/internal/logging"
	"github.com/devorb/orb/internal/vault"
	"github.com/devorb/orb/internal/workspace"
)

// app is the wired-up object graph every command works against: one
// config store, one rate-limited client, one resolver and item cache
// hanging off it. Constructed per invocation, never global.
type app struct {
	store    *config.Store
	cfg      *config.Config
	client   *vault.RateLimitedClient
	resolver *vault.Resolver
	cache    *vault.ItemCache
	root     string
	manifest *workspace.Manifest
	scope    string
	strategy engine.Strategy
}

// buildApp assembles the object graph from flags and configuration.
func buildApp() (*app, error) {
	root, err := filepath.Abs(workspaceFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	store, err := config.Init(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := store.Config()

	manifest, err := workspace.LoadManifest(root)
	if err != nil {
		return nil, err
	}
	scope := manifest.EffectiveScope(root)

	mode := cfg.SyncMode
	if modeFlag != "" {
		mode = modeFlag
	}

	rest, err := vault.NewRESTClient(vault.ClientConfig{
		Address: cfg.VaultAddress,
		Token:   store.VaultToken(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w\n\nRun `orb setup` first, and export the access token in $%s",
			err, cfg.VaultTokenEnv)
	}

	client := vault.NewRateLimitedClient(rest, cfg.MinInterval, cfg.Cooldown, nil)
	resolver := vault.NewResolver(client, store, 0, nil)
	cache := vault.NewItemCache(client, resolver, scope, cfg.CacheTTL, nil)

	return &app{
		store:    store,
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		cache:    cache,
		root:     root,
		manifest: manifest,
		scope:    scope,
		strategy: engine.StrategyFor(mode),
	}, nil
}

// newEngine builds a reconciliation engine on the app's shared client.
func (a *app) newEngine(autoCreate bool, prompter engine.Prompter, onLocalWrite func(string), logger *log.Logger) *engine.Engine {
	return engine.New(a.client, a.cache, a.resolver, engine.Options{
		Root:         a.root,
		Scope:        a.scope,
		Manifest:     a.manifest,
		AutoCreate:   autoCreate || a.cfg.AutoCreate,
		Strategy:     a.strategy,
		Prompter:     prompter,
		OnLocalWrite: onLocalWrite,
		Logger:       logger,
	})
}

// cmdLogger returns the logger for one-shot commands: stderr under
// --verbose, discarded otherwise.
func cmdLogger() *log.Logger {
	if verboseFlag {
		return logging.New("[orb] ")
	}
	return log.New(io.Discard, "", 0)
}
