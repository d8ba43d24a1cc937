// Package gitops decides whether a tracked file disappeared because of a
// version-control operation or because the user deleted it.
//
// Branch switches, merges, and rebases delete and recreate working-tree
// files; a watcher that treated those deletions as user intent would wipe
// the remote backup on every checkout. The classifier gates the remote
// deletion path: only deletions it attributes to the user ever reach a
// confirmation prompt.
package gitops

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Cause classifies why a tracked file disappeared.
type Cause int

const (
	// CauseVCSOperation attributes the deletion to a checkout, merge,
	// rebase, or similar; the remote copy must be preserved.
	CauseVCSOperation Cause = iota

	// CauseUserDelete attributes the deletion to the user; remote
	// deletion may be offered, behind confirmation.
	CauseUserDelete
)

// String returns a human-readable representation of the cause.
func (c Cause) String() string {
	switch c {
	case CauseVCSOperation:
		return "vcs-operation"
	case CauseUserDelete:
		return "user-delete"
	default:
		return "unknown"
	}
}

const (
	// DefaultPollInterval is how often the branch/head poll runs.
	DefaultPollInterval = 2 * time.Second

	// DefaultFlagWindow is how long after an observed branch/head change
	// deletions keep being attributed to the VCS.
	DefaultFlagWindow = 5 * time.Second
)

// markerEntries are the in-progress-operation markers inside the git
// metadata directory. Any of them present means an operation is underway
// right now, no further checks needed.
var markerEntries = []string{
	"MERGE_HEAD",
	"CHERRY_PICK_HEAD",
	"REVERT_HEAD",
	"BISECT_LOG",
	"rebase-merge",
	"rebase-apply",
}

// Classifier tracks one workspace root. Create with New, start the
// background poll with Start, and ask Classify when a deletion event
// arrives.
type Classifier struct {
	root    string
	gitDir  string
	poll    time.Duration
	window  time.Duration
	logger  *log.Logger

	mu         sync.Mutex
	lastBranch string
	lastHead   string
	opUntil    time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a classifier for the workspace root. A root outside any git
// repository is fine: every deletion then classifies as user-initiated.
func New(root string, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.New(os.Stderr, "[gitops] ", log.LstdFlags)
	}
	return &Classifier{
		root:   root,
		gitDir: findGitDir(root),
		poll:   DefaultPollInterval,
		window: DefaultFlagWindow,
		logger: logger,
	}
}

// Start launches the background branch/head poll. No-op outside a git
// repository.
func (c *Classifier) Start(ctx context.Context) {
	if c.gitDir == "" {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.lastBranch, c.lastHead = c.readBranchHead()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.pollOnce()
			}
		}
	}()
}

// Stop halts the poll and waits for it to exit.
func (c *Classifier) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Classify decides why path disappeared. Detection order: operation
// marker files, then the transient branch/head-change flag, then user.
// When the signals are ambiguous the answer is CauseVCSOperation: the
// user can always delete manually, but a wrongly deleted remote backup is
// gone.
func (c *Classifier) Classify(path string) Cause {
	if c.gitDir == "" {
		return CauseUserDelete
	}

	if c.operationMarkerPresent() {
		return CauseVCSOperation
	}

	c.mu.Lock()
	inWindow := time.Now().Before(c.opUntil)
	c.mu.Unlock()
	if inWindow {
		return CauseVCSOperation
	}

	// The poll may not have run since the branch change that caused this
	// deletion; check once more synchronously before blaming the user.
	if c.pollOnce() {
		return CauseVCSOperation
	}

	return CauseUserDelete
}

// pollOnce compares current branch/head against the last observed values,
// arming the transient flag on change. Reports whether a change was seen.
func (c *Classifier) pollOnce() bool {
	branch, head := c.readBranchHead()
	if branch == "" && head == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := (branch != c.lastBranch || head != c.lastHead) &&
		(c.lastBranch != "" || c.lastHead != "")
	c.lastBranch = branch
	c.lastHead = head

	if changed {
		c.opUntil = time.Now().Add(c.window)
		c.logger.Printf("Branch/head change observed (%s @ %.8s); attributing deletions to VCS for %s",
			branch, head, c.window)
	}
	return changed
}

// operationMarkerPresent checks the git metadata directory for merge,
// rebase, cherry-pick, revert, or bisect markers.
func (c *Classifier) operationMarkerPresent() bool {
	for _, entry := range markerEntries {
		if _, err := os.Stat(filepath.Join(c.gitDir, entry)); err == nil {
			return true
		}
	}
	return false
}

// readBranchHead returns the current branch name and head commit.
func (c *Classifier) readBranchHead() (branch, head string) {
	branch = c.git("rev-parse", "--abbrev-ref", "HEAD")
	head = c.git("rev-parse", "HEAD")
	return branch, head
}

// git runs one git command in the workspace root, returning trimmed
// stdout or "" on failure.
func (c *Classifier) git(args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.root
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// findGitDir walks up from root looking for the git metadata directory,
// resolving the gitdir pointer file worktrees use. Returns "" when root
// is not inside a git repository.
func findGitDir(root string) string {
	current, err := filepath.Abs(root)
	if err != nil {
		return ""
	}

	for {
		gitPath := filepath.Join(current, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitPath
			}
			if info.Mode().IsRegular() {
				return resolveWorktreeGitDir(current, gitPath)
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// resolveWorktreeGitDir follows the "gitdir: ..." pointer in a worktree's
// .git file.
func resolveWorktreeGitDir(worktreePath, gitFile string) string {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return ""
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return ""
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(worktreePath, gitDir)
	}
	return filepath.Clean(gitDir)
}
