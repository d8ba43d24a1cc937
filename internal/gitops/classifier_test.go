package gitops

import (
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

// fakeRepo creates a directory with a bare-bones .git metadata dir. Not a
// functional repository, but enough for marker-file checks.
func fakeRepo(t *testing.T) (root, gitDir string) {
	t.Helper()

	root = t.TempDir()
	gitDir = filepath.Join(root, ".git")
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return root, gitDir
}

func TestClassify_MergeMarkerMeansVCSOperation(t *testing.T) {
	root, gitDir := fakeRepo(t)
	if err := os.WriteFile(filepath.Join(gitDir, "MERGE_HEAD"), []byte("abc\n"), 0644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	c := New(root, testLogger())
	if got := c.Classify(".env"); got != CauseVCSOperation {
		t.Errorf("Classify = %v, want CauseVCSOperation", got)
	}
}

func TestClassify_RebaseDirMeansVCSOperation(t *testing.T) {
	root, gitDir := fakeRepo(t)
	if err := os.MkdirAll(filepath.Join(gitDir, "rebase-merge"), 0755); err != nil {
		t.Fatalf("mkdir marker: %v", err)
	}

	c := New(root, testLogger())
	if got := c.Classify(".env"); got != CauseVCSOperation {
		t.Errorf("Classify = %v, want CauseVCSOperation", got)
	}
}

func TestClassify_NoMarkersNoRecentChangeMeansUser(t *testing.T) {
	root, _ := fakeRepo(t)

	c := New(root, testLogger())
	if got := c.Classify(".env"); got != CauseUserDelete {
		t.Errorf("Classify = %v, want CauseUserDelete", got)
	}
}

func TestClassify_OutsideRepositoryMeansUser(t *testing.T) {
	c := New(t.TempDir(), testLogger())
	if got := c.Classify(".env"); got != CauseUserDelete {
		t.Errorf("Classify = %v, want CauseUserDelete", got)
	}
}

func TestClassify_TransientWindowAfterHeadChange(t *testing.T) {
	root, _ := fakeRepo(t)

	c := New(root, testLogger())
	c.mu.Lock()
	c.opUntil = time.Now().Add(time.Second)
	c.mu.Unlock()

	if got := c.Classify(".env"); got != CauseVCSOperation {
		t.Errorf("Classify inside window = %v, want CauseVCSOperation", got)
	}

	c.mu.Lock()
	c.opUntil = time.Now().Add(-time.Second)
	c.mu.Unlock()

	if got := c.Classify(".env"); got != CauseUserDelete {
		t.Errorf("Classify after window = %v, want CauseUserDelete", got)
	}
}

func TestFindGitDir_WalksUp(t *testing.T) {
	root, gitDir := fakeRepo(t)
	nested := filepath.Join(root, "services", "api")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	if got := findGitDir(nested); got != gitDir {
		t.Errorf("findGitDir = %q, want %q", got, gitDir)
	}
}

func TestFindGitDir_ResolvesWorktreePointer(t *testing.T) {
	mainRoot, mainGitDir := fakeRepo(t)
	wtGitDir := filepath.Join(mainGitDir, "worktrees", "feature")
	if err := os.MkdirAll(wtGitDir, 0755); err != nil {
		t.Fatalf("mkdir worktree git dir: %v", err)
	}

	worktree := filepath.Join(mainRoot, "wt")
	if err := os.MkdirAll(worktree, 0755); err != nil {
		t.Fatalf("mkdir worktree: %v", err)
	}
	pointer := "gitdir: " + wtGitDir + "\n"
	if err := os.WriteFile(filepath.Join(worktree, ".git"), []byte(pointer), 0644); err != nil {
		t.Fatalf("write pointer: %v", err)
	}

	if got := findGitDir(worktree); got != wtGitDir {
		t.Errorf("findGitDir = %q, want %q", got, wtGitDir)
	}
}

func TestFindGitDir_NotARepo(t *testing.T) {
	// filepath walk must terminate at the filesystem root.
	if got := findGitDir(t.TempDir()); got != "" {
		t.Errorf("findGitDir = %q, want empty", got)
	}
}
