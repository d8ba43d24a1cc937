package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestDefaultsWithoutFile(t *testing.T) {
	store, err := Init(tempConfigPath(t))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg := store.Config()
	if cfg.SyncMode != "file" {
		t.Errorf("SyncMode = %q, want file", cfg.SyncMode)
	}
	if cfg.MinInterval != 600*time.Millisecond {
		t.Errorf("MinInterval = %v, want 600ms", cfg.MinInterval)
	}
	if cfg.Cooldown != 60*time.Second {
		t.Errorf("Cooldown = %v, want 60s", cfg.Cooldown)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.CacheTTL)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Debounce)
	}
	if cfg.SuppressWindow != 5*time.Second {
		t.Errorf("SuppressWindow = %v, want 5s", cfg.SuppressWindow)
	}
	if cfg.AutoCreate {
		t.Error("AutoCreate = true, want false by default")
	}
	if cfg.VaultTokenEnv != "DEVORB_TOKEN" {
		t.Errorf("VaultTokenEnv = %q", cfg.VaultTokenEnv)
	}
}

func TestFileValuesOverrideDefaults(t *testing.T) {
	path := tempConfigPath(t)
	raw := "vault:\n  address: https://vault.example.com\nsync:\n  mode: env\n  auto_create: true\n"
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg := store.Config()
	if cfg.VaultAddress != "https://vault.example.com" {
		t.Errorf("VaultAddress = %q", cfg.VaultAddress)
	}
	if cfg.SyncMode != "env" {
		t.Errorf("SyncMode = %q, want env", cfg.SyncMode)
	}
	if !cfg.AutoCreate {
		t.Error("AutoCreate = false, want true from file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("vault:\n  address: https://file.example.com\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DEVORB_VAULT_ADDRESS", "https://env.example.com")

	store, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := store.Config().VaultAddress; got != "https://env.example.com" {
		t.Errorf("VaultAddress = %q, want env value", got)
	}
}

func TestTokenReadFromNamedEnvVar(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("vault:\n  token_env: MY_VAULT_TOKEN\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MY_VAULT_TOKEN", "s3cret")

	store, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := store.VaultToken(); got != "s3cret" {
		t.Errorf("VaultToken = %q, want s3cret", got)
	}
}

func TestSetVaultIDPersists(t *testing.T) {
	path := tempConfigPath(t)

	store, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if store.VaultID() != "" {
		t.Fatalf("fresh store has vault id %q", store.VaultID())
	}

	if err := store.SetVaultID("vault-123"); err != nil {
		t.Fatalf("SetVaultID: %v", err)
	}
	if store.VaultID() != "vault-123" {
		t.Errorf("VaultID = %q after set", store.VaultID())
	}

	// A fresh load sees the persisted id.
	reloaded, err := Init(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.VaultID(); got != "vault-123" {
		t.Errorf("reloaded VaultID = %q, want vault-123", got)
	}
}

func TestSetCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "devorb", "config.yaml")

	store, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.SetGistContainerID("g-1"); err != nil {
		t.Fatalf("SetGistContainerID: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	reloaded, err := Init(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Config().GistContainerID; got != "g-1" {
		t.Errorf("GistContainerID = %q, want g-1", got)
	}
}
