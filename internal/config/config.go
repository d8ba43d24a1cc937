// Package config loads and persists the global tool configuration.
//
// Priority: environment variables (DEVORB_*) > config file > defaults.
// The access tokens themselves never live in the file; the file names
// the environment variables that hold them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the flattened view of every setting the tool reads.
type Config struct {
	// VaultAddress is the base URL of the secret store's REST API.
	VaultAddress string

	// VaultTokenEnv names the environment variable holding the secret
	// store access token.
	VaultTokenEnv string

	// VaultID is the discovered vault container id, persisted after
	// first discovery so later runs skip the listing call.
	VaultID string

	// GistAddress is the base URL of the blob store used for the
	// config-sync flavor.
	GistAddress string

	// GistTokenEnv names the environment variable holding the blob
	// store access token.
	GistTokenEnv string

	// GistContainerID is the container holding tool-config blobs.
	GistContainerID string

	// SyncMode selects the content-unit flavor: "file" or "env".
	SyncMode string

	// AutoCreate enables materializing remote-only records locally
	// without the --create-missing flag.
	AutoCreate bool

	// MinInterval paces remote calls.
	MinInterval time.Duration

	// Cooldown is the circuit-breaker hold time after a rate-limit
	// response without a Retry-After header.
	Cooldown time.Duration

	// CacheTTL bounds how stale the remote listing may be.
	CacheTTL time.Duration

	// Debounce is the watch-mode per-path quiet window.
	Debounce time.Duration

	// SuppressWindow is how long watch mode ignores the echo of the
	// tool's own writes.
	SuppressWindow time.Duration

	// LogFile, when set, sends watch-mode logs to a rotating file
	// instead of stderr.
	LogFile string
}

// Store wraps the viper instance so settings can be written back.
type Store struct {
	v    *viper.Viper
	path string
}

// Init loads configuration. cfgFile overrides the default location
// (user config dir, devorb/config.yaml). A missing file is not an
// error; defaults apply.
func Init(cfgFile string) (*Store, error) {
	v := viper.New()

	v.SetDefault("vault.token_env", "DEVORB_TOKEN")
	v.SetDefault("vault.min_interval", "600ms")
	v.SetDefault("vault.cooldown", "60s")
	v.SetDefault("vault.cache_ttl", "30s")
	v.SetDefault("gist.token_env", "DEVORB_GIST_TOKEN")
	v.SetDefault("sync.mode", "file")
	v.SetDefault("sync.auto_create", false)
	v.SetDefault("watch.debounce", "1s")
	v.SetDefault("watch.suppress", "5s")

	path := cfgFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "devorb", "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DEVORB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	return &Store{v: v, path: path}, nil
}

// Path returns the config file location in effect.
func (s *Store) Path() string { return s.path }

// Config extracts the flattened settings.
func (s *Store) Config() *Config {
	return &Config{
		VaultAddress:    s.v.GetString("vault.address"),
		VaultTokenEnv:   s.v.GetString("vault.token_env"),
		VaultID:         s.v.GetString("vault.id"),
		GistAddress:     s.v.GetString("gist.address"),
		GistTokenEnv:    s.v.GetString("gist.token_env"),
		GistContainerID: s.v.GetString("gist.container_id"),
		SyncMode:        s.v.GetString("sync.mode"),
		AutoCreate:      s.v.GetBool("sync.auto_create"),
		MinInterval:     s.v.GetDuration("vault.min_interval"),
		Cooldown:        s.v.GetDuration("vault.cooldown"),
		CacheTTL:        s.v.GetDuration("vault.cache_ttl"),
		Debounce:        s.v.GetDuration("watch.debounce"),
		SuppressWindow:  s.v.GetDuration("watch.suppress"),
		LogFile:         s.v.GetString("watch.log_file"),
	}
}

// VaultToken reads the secret store token from the configured
// environment variable.
func (s *Store) VaultToken() string {
	return os.Getenv(s.v.GetString("vault.token_env"))
}

// GistToken reads the blob store token from the configured environment
// variable.
func (s *Store) GistToken() string {
	return os.Getenv(s.v.GetString("gist.token_env"))
}

// VaultID returns the persisted vault container id, if any.
func (s *Store) VaultID() string {
	return s.v.GetString("vault.id")
}

// SetVaultID persists a discovered vault id.
func (s *Store) SetVaultID(id string) error {
	return s.Set("vault.id", id)
}

// SetGistContainerID persists the blob container id after first
// creation.
func (s *Store) SetGistContainerID(id string) error {
	return s.Set("gist.container_id", id)
}

// Set writes one key and saves the file, creating it (and its
// directory) on first write.
func (s *Store) Set(key string, value any) error {
	s.v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	return nil
}
