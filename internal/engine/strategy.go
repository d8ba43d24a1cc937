package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devorb/orb/internal/vault"
	"github.com/devorb/orb/internal/workspace"
)

// Unit is one syncable content unit: a whole file in file mode, a single
// key=value pair in env mode. The engine reconciles units; which flavor
// they are is the strategy's business.
type Unit struct {
	// Key joins local and remote: the relative path, or path#VAR.
	Key string

	// Path is the owning file's workspace-relative path.
	Path string

	// Content is the unit payload.
	Content string

	// Hash is the SHA-256 hex digest of Content.
	Hash string

	// ModTime is the owning file's last-modified time.
	ModTime time.Time
}

// Strategy turns tracked files into units and remote records back into
// local writes. Two implementations exist, whole-file blobs (the primary
// model) and per-key env secrets, selected by configuration.
type Strategy interface {
	// Name identifies the strategy in config and logs.
	Name() string

	// PlaceholderAware reports whether fill-me-in sentinels suppress
	// conflicts for this flavor.
	PlaceholderAware() bool

	// LocalUnits decomposes tracked files into units.
	LocalUnits(files []workspace.TrackedFile) []Unit

	// Materialize writes a remote record into the workspace, creating
	// parent directories as needed. It returns the file path written so
	// the caller can suppress the watcher echo.
	Materialize(root string, rec *vault.Record) (string, error)
}

// envKeySep separates path from variable name in env-mode unit keys.
const envKeySep = "#"

// FileStrategy syncs whole files as opaque blobs keyed by path. This is
// the long-term data model; the per-key flavor exists for workflows that
// want individual secrets to remain individually addressable.
type FileStrategy struct{}

func (FileStrategy) Name() string           { return "file" }
func (FileStrategy) PlaceholderAware() bool { return false }

// LocalUnits maps each tracked file to one unit.
func (FileStrategy) LocalUnits(files []workspace.TrackedFile) []Unit {
	units := make([]Unit, 0, len(files))
	for _, f := range files {
		units = append(units, Unit{
			Key:     f.RelPath,
			Path:    f.RelPath,
			Content: f.Content,
			Hash:    f.Hash,
			ModTime: f.ModTime,
		})
	}
	return units
}

// Materialize writes the full file content and pins its mtime to the
// record's modification time, so the next pass's hash/time comparison
// sees a consistent pair.
func (FileStrategy) Materialize(root string, rec *vault.Record) (string, error) {
	abs := filepath.Join(root, filepath.FromSlash(rec.Path))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("create parent dirs for %s: %w", rec.Path, err)
	}
	if err := os.WriteFile(abs, []byte(rec.Content), 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", rec.Path, err)
	}
	if !rec.Modified.IsZero() {
		if err := os.Chtimes(abs, rec.Modified, rec.Modified); err != nil {
			return "", fmt.Errorf("set mtime on %s: %w", rec.Path, err)
		}
	}
	return rec.Path, nil
}

// EnvStrategy syncs individual env variables keyed by (file path, name).
// The file path is part of the join key on purpose: the same variable
// may legitimately live in several files with different values.
type EnvStrategy struct{}

func (EnvStrategy) Name() string           { return "env" }
func (EnvStrategy) PlaceholderAware() bool { return true }

// LocalUnits decomposes each env file into one unit per key.
func (EnvStrategy) LocalUnits(files []workspace.TrackedFile) []Unit {
	var units []Unit
	for _, f := range files {
		for _, v := range workspace.ParseEnv(f.Content) {
			units = append(units, Unit{
				Key:     f.RelPath + envKeySep + v.Key,
				Path:    f.RelPath,
				Content: v.Value,
				Hash:    workspace.Hash(v.Value),
				ModTime: f.ModTime,
			})
		}
	}
	return units
}

// Materialize upserts the variable into its owning file, creating the
// file if needed. The file mtime is left alone: other keys in the same
// file keep their own comparison baseline.
func (EnvStrategy) Materialize(root string, rec *vault.Record) (string, error) {
	relPath, name, ok := SplitEnvKey(rec.Path)
	if !ok {
		return "", fmt.Errorf("malformed env record key %q", rec.Path)
	}

	abs := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("create parent dirs for %s: %w", relPath, err)
	}

	var content string
	if raw, err := os.ReadFile(abs); err == nil {
		content = string(raw)
	}

	updated := workspace.UpsertEnvVar(content, name, rec.Content)
	if err := os.WriteFile(abs, []byte(updated), 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	return relPath, nil
}

// SplitEnvKey splits an env-mode unit key into its file path and
// variable name.
func SplitEnvKey(key string) (relPath, name string, ok bool) {
	i := strings.LastIndex(key, envKeySep)
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// StrategyFor returns the strategy named by mode, defaulting to the
// whole-file model.
func StrategyFor(mode string) Strategy {
	if mode == "env" {
		return EnvStrategy{}
	}
	return FileStrategy{}
}
