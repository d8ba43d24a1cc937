// Package workspace enumerates and reads the local files DevOrb keeps in
// sync: env files matched by glob patterns under a workspace root, plus
// the per-workspace manifest that can override the defaults.
//
// Hashing and env parsing live here too; they are pure helpers with no
// I/O of their own.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns match the env-file family at any depth.
var DefaultPatterns = []string{
	".env",
	".env.*",
	"**/.env",
	"**/.env.*",
}

// DefaultExcludes are dependency and VCS directories never worth
// scanning.
var DefaultExcludes = []string{
	"node_modules",
	"vendor",
	".git",
	".jj",
	"dist",
	"build",
	".venv",
}

// TrackedFile is one local file under reconciliation. Content and hash
// are re-read on every pass; the hash is a pure function of content and
// never cached across content changes.
type TrackedFile struct {
	// Path is the absolute filesystem path.
	Path string

	// RelPath is the path relative to the workspace root, with forward
	// slashes. It is the join key against remote records.
	RelPath string

	// Content is the raw file text.
	Content string

	// Hash is the SHA-256 hex digest of Content.
	Hash string

	// ModTime is the file's last-modified timestamp.
	ModTime time.Time
}

// Hash returns the SHA-256 hex digest of content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Read loads one tracked file. relPath uses forward slashes.
func Read(root, relPath string) (*TrackedFile, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	content := string(raw)
	return &TrackedFile{
		Path:    abs,
		RelPath: relPath,
		Content: content,
		Hash:    Hash(content),
		ModTime: info.ModTime(),
	}, nil
}

// Enumerate finds all tracked files under root matching the patterns,
// skipping excluded directories. Results are sorted by RelPath.
func Enumerate(root string, patterns, excludes []string) ([]TrackedFile, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if len(excludes) == 0 {
		excludes = DefaultExcludes
	}

	fsys := os.DirFS(root)
	seen := map[string]bool{}

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if excluded(m, excludes) {
				continue
			}
			if info, err := fs.Stat(fsys, m); err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
		}
	}

	relPaths := make([]string, 0, len(seen))
	for p := range seen {
		relPaths = append(relPaths, p)
	}
	sort.Strings(relPaths)

	files := make([]TrackedFile, 0, len(relPaths))
	for _, rel := range relPaths {
		tf, err := Read(root, rel)
		if err != nil {
			// The file may have vanished between glob and read; skip it
			// rather than failing the enumeration.
			continue
		}
		files = append(files, *tf)
	}
	return files, nil
}

// Matches reports whether relPath matches any tracked-file pattern and
// is not excluded. Used by the watcher to filter raw events.
func Matches(relPath string, patterns, excludes []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if len(excludes) == 0 {
		excludes = DefaultExcludes
	}
	if excluded(relPath, excludes) {
		return false
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// excluded reports whether any path segment names an excluded directory.
func excluded(relPath string, excludes []string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		for _, ex := range excludes {
			if seg == ex {
				return true
			}
		}
	}
	return false
}
