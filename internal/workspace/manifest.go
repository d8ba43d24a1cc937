package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the optional per-workspace settings file.
const ManifestName = ".devorb.yaml"

// Manifest holds per-workspace overrides. All fields are optional; zero
// values fall back to the package defaults.
type Manifest struct {
	// Patterns are the tracked-file globs.
	Patterns []string `yaml:"patterns,omitempty"`

	// Exclude lists directory names to skip during enumeration.
	Exclude []string `yaml:"exclude,omitempty"`

	// Scope overrides the detected repository scope.
	Scope string `yaml:"scope,omitempty"`
}

// LoadManifest reads .devorb.yaml from root. A missing file yields an
// empty manifest, not an error.
func LoadManifest(root string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manifest{}, nil
		}
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	return &m, nil
}

// EffectivePatterns returns the manifest patterns or the defaults.
func (m *Manifest) EffectivePatterns() []string {
	if len(m.Patterns) > 0 {
		return m.Patterns
	}
	return DefaultPatterns
}

// EffectiveExcludes returns the manifest excludes or the defaults.
func (m *Manifest) EffectiveExcludes() []string {
	if len(m.Exclude) > 0 {
		return m.Exclude
	}
	return DefaultExcludes
}

// EffectiveScope returns the manifest scope override or the detected
// scope for root.
func (m *Manifest) EffectiveScope(root string) string {
	if m.Scope != "" {
		return m.Scope
	}
	return DetectScope(root)
}
