// Package git shells out to the git binary for the little plumbing babel
// needs: resolving revisions and reading commit metadata. Every helper
// fails soft; callers decide what to do without a repository.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// run executes git with args in dir (empty means the process cwd) and
// returns trimmed stdout.
func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ResolveHash expands a revision (HEAD, a short hash, a ref name) to the
// full commit hash.
func ResolveHash(dir, rev string) (string, error) {
	out, err := run(dir, "rev-parse", "--verify", rev)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	return out, nil
}

// CommitMessage returns the full message of a commit.
func CommitMessage(dir, hash string) (string, error) {
	return run(dir, "show", "-s", "--format=%B", hash)
}

// CommitAuthor returns the author name of a commit.
func CommitAuthor(dir, hash string) (string, error) {
	return run(dir, "show", "-s", "--format=%an", hash)
}

// UserName returns the configured git user.name, or "" when unset or git
// is not installed.
func UserName(dir string) string {
	out, err := run(dir, "config", "user.name")
	if err != nil {
		return ""
	}
	return out
}
