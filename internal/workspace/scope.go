package workspace

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DetectScope derives the repository scope for a workspace root: the
// normalized origin remote URL when the root is a git repository, the
// folder name otherwise. The scope tags remote records so unrelated
// projects sharing one vault never cross-pollinate.
func DetectScope(root string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "config", "--get", "remote.origin.url")
	cmd.Dir = root
	output, err := cmd.Output()
	if err == nil {
		if scope := NormalizeRemoteURL(strings.TrimSpace(string(output))); scope != "" {
			return scope
		}
	}

	return filepath.Base(root)
}

// NormalizeRemoteURL reduces a git remote URL to a stable host/owner/repo
// form, so https, ssh, and scp-like spellings of the same remote produce
// the same scope.
//
//	https://github.com/acme/widgets.git -> github.com/acme/widgets
//	git@github.com:acme/widgets.git     -> github.com/acme/widgets
//	ssh://git@github.com/acme/widgets   -> github.com/acme/widgets
func NormalizeRemoteURL(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return ""
	}

	for _, prefix := range []string{"https://", "http://", "ssh://", "git://"} {
		remote = strings.TrimPrefix(remote, prefix)
	}
	// scp-like: git@host:owner/repo
	if at := strings.Index(remote, "@"); at >= 0 {
		remote = remote[at+1:]
	}
	remote = strings.Replace(remote, ":", "/", 1)
	remote = strings.TrimSuffix(remote, ".git")
	remote = strings.TrimSuffix(remote, "/")

	return strings.ToLower(remote)
}
