package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates a file under root, making parent directories.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestEnumerate_FindsEnvFilesAtAnyDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".env", "A=1\n")
	writeFile(t, root, ".env.production", "B=2\n")
	writeFile(t, root, "services/api/.env", "C=3\n")
	writeFile(t, root, "README.md", "not tracked\n")
	writeFile(t, root, "node_modules/pkg/.env", "D=4\n")

	files, err := Enumerate(root, nil, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	want := []string{".env", ".env.production", "services/api/.env"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, rel := range want {
		if files[i].RelPath != rel {
			t.Errorf("files[%d].RelPath = %q, want %q", i, files[i].RelPath, rel)
		}
	}
}

func TestEnumerate_HashIsContentDerived(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".env", "FOO=bar\n")

	files, err := Enumerate(root, nil, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files", len(files))
	}

	if files[0].Hash != Hash("FOO=bar\n") {
		t.Errorf("hash mismatch: %s", files[0].Hash)
	}
	if files[0].ModTime.IsZero() {
		t.Error("ModTime not populated")
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		rel  string
		want bool
	}{
		{".env", true},
		{".env.local", true},
		{"api/.env", true},
		{"a/b/c/.env.staging", true},
		{"README.md", false},
		{"node_modules/x/.env", false},
		{".git/.env", false},
		{".environment", false},
	}

	for _, tc := range cases {
		t.Run(tc.rel, func(t *testing.T) {
			if got := Matches(tc.rel, nil, nil); got != tc.want {
				t.Errorf("Matches(%q) = %v, want %v", tc.rel, got, tc.want)
			}
		})
	}
}

func TestParseEnv(t *testing.T) {
	content := `# database
DB_URL=postgres://localhost/dev
export API_KEY="abc123"
EMPTY=
QUOTED='single'

# overridden below
DB_URL=postgres://localhost/prod
not a var line
`
	vars := ParseEnv(content)

	byKey := map[string]string{}
	for _, v := range vars {
		byKey[v.Key] = v.Value
	}

	if len(vars) != 4 {
		t.Fatalf("got %d vars, want 4: %+v", len(vars), vars)
	}
	if byKey["DB_URL"] != "postgres://localhost/prod" {
		t.Errorf("later assignment should win, got %q", byKey["DB_URL"])
	}
	if byKey["API_KEY"] != "abc123" {
		t.Errorf("quotes not stripped: %q", byKey["API_KEY"])
	}
	if byKey["QUOTED"] != "single" {
		t.Errorf("single quotes not stripped: %q", byKey["QUOTED"])
	}
	if _, ok := byKey["EMPTY"]; !ok {
		t.Error("empty value dropped; keys with empty values must still parse")
	}
}

func TestUpsertEnvVar(t *testing.T) {
	content := "A=1\nB=2\n"

	updated := UpsertEnvVar(content, "B", "20")
	if updated != "A=1\nB=20\n" {
		t.Errorf("in-place rewrite failed: %q", updated)
	}

	appended := UpsertEnvVar(content, "C", "3")
	if appended != "A=1\nB=2\nC=3\n" {
		t.Errorf("append failed: %q", appended)
	}

	fromEmpty := UpsertEnvVar("", "A", "1")
	if fromEmpty != "A=1\n" {
		t.Errorf("empty-file upsert failed: %q", fromEmpty)
	}
}

func TestIsPlaceholder(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"changeme", true},
		{"CHANGEME", true},
		{"todo", true},
		{"<your token here>", true},
		{"sk-live-abc123", false},
		{"postgres://x", false},
	}

	for _, tc := range cases {
		if got := IsPlaceholder(tc.value); got != tc.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestNormalizeRemoteURL(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"https://github.com/acme/widgets.git", "github.com/acme/widgets"},
		{"git@github.com:acme/widgets.git", "github.com/acme/widgets"},
		{"ssh://git@github.com/acme/widgets", "github.com/acme/widgets"},
		{"https://GitHub.com/Acme/Widgets", "github.com/acme/widgets"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeRemoteURL(tc.remote); got != tc.want {
			t.Errorf("NormalizeRemoteURL(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	root := t.TempDir()

	m, err := LoadManifest(root)
	if err != nil {
		t.Fatalf("missing manifest should not error: %v", err)
	}
	if len(m.EffectivePatterns()) == 0 {
		t.Error("defaults not applied for missing manifest")
	}

	writeFile(t, root, ManifestName, "patterns:\n  - \"config/*.env\"\nscope: my-project\n")
	m, err = LoadManifest(root)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(m.Patterns) != 1 || m.Patterns[0] != "config/*.env" {
		t.Errorf("patterns = %+v", m.Patterns)
	}
	if m.EffectiveScope(root) != "my-project" {
		t.Errorf("scope override ignored: %q", m.EffectiveScope(root))
	}
}
