package gist

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/devorb/orb/internal/workspace"
)

// DefaultPatterns matches the assistant and editor configuration files
// the config-sync flavor mirrors by default.
var DefaultPatterns = []string{
	".cursorrules",
	".windsurfrules",
	".aider.conf.yml",
	".editorconfig",
}

// SyncResult summarizes one config-sync pass.
type SyncResult struct {
	Pushed    int
	Pulled    int
	Unchanged int
}

// SyncOptions configure a config-sync pass.
type SyncOptions struct {
	// Root is the workspace root.
	Root string

	// ContainerID names the container. Empty means create one and
	// report its id back through the result of Sync.
	ContainerID string

	// Patterns selects the tracked config files. Defaults to
	// DefaultPatterns.
	Patterns []string

	// Excludes lists directory names to skip during enumeration.
	Excludes []string

	// OnLocalWrite is called before each local file write, so a watcher
	// can ignore the echo.
	OnLocalWrite func(relPath string)

	Logger *log.Logger
}

// Sync mirrors tool-config files against one container. Local content
// is authoritative for files present on both sides: differing blobs are
// pushed, never pulled. Blobs with no local counterpart are
// materialized. Returns the container id, which matters when the pass
// created it.
func Sync(ctx context.Context, client *Client, opts SyncOptions) (string, *SyncResult, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	excludes := opts.Excludes
	if len(excludes) == 0 {
		excludes = workspace.DefaultExcludes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[config-sync] ", log.LstdFlags)
	}

	files, err := workspace.Enumerate(opts.Root, patterns, excludes)
	if err != nil {
		return "", nil, fmt.Errorf("enumerate config files: %w", err)
	}

	if opts.ContainerID == "" {
		return createContainer(ctx, client, files, logger)
	}

	container, err := client.Get(ctx, opts.ContainerID)
	if err != nil {
		return "", nil, fmt.Errorf("fetch container %s: %w", opts.ContainerID, err)
	}

	result := &SyncResult{}
	local := map[string]bool{}
	for _, f := range files {
		local[f.RelPath] = true
		remote, ok := container.Files[f.RelPath]
		if ok && remote == f.Content {
			result.Unchanged++
			continue
		}
		if err := client.Upsert(ctx, container.ID, f.RelPath, f.Content); err != nil {
			return container.ID, result, fmt.Errorf("push %s: %w", f.RelPath, err)
		}
		result.Pushed++
		logger.Printf("Pushed %s", f.RelPath)
	}

	// Deterministic order for the pulls.
	names := make([]string, 0, len(container.Files))
	for name := range container.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if local[name] {
			continue
		}
		if err := materialize(opts.Root, name, container.Files[name], opts.OnLocalWrite); err != nil {
			return container.ID, result, err
		}
		result.Pulled++
		logger.Printf("Pulled %s", name)
	}

	return container.ID, result, nil
}

// createContainer seeds a fresh container with every local config file.
func createContainer(ctx context.Context, client *Client, files []workspace.TrackedFile, logger *log.Logger) (string, *SyncResult, error) {
	blobs := make(map[string]string, len(files))
	for _, f := range files {
		blobs[f.RelPath] = f.Content
	}
	if len(blobs) == 0 {
		return "", nil, fmt.Errorf("no config files to seed a new container with")
	}

	container, err := client.Create(ctx, "devorb tool configuration", blobs)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}
	logger.Printf("Created container %s with %d file(s)", container.ID, len(blobs))
	return container.ID, &SyncResult{Pushed: len(blobs)}, nil
}

func materialize(root, relPath, content string, onLocalWrite func(string)) error {
	if onLocalWrite != nil {
		onLocalWrite(relPath)
	}
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("create parent dirs for %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0600); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}
