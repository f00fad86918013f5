// Package git wraps the git CLI operations Agentty needs to give every
// session its own worktree: detecting a repository, creating a worktree on
// a fresh branch, and removing it again once a session is done.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BranchPrefix names every worktree branch Agentty creates, e.g.
// agentty/3f9c1a2b.
const BranchPrefix = "agentty/"

// GitClient is the boundary the session orchestrator uses for every git
// operation a session's worktree lifecycle needs. Manager depends on this
// interface rather than *Git directly, so unit tests can substitute a
// hand-written fake instead of exercising a real on-disk repository.
type GitClient interface {
	// CreateWorktree adds a new worktree on a fresh branch for a session.
	CreateWorktree(ctx context.Context, worktreePath, branchName, baseBranch string) error
	// RemoveWorktree force-removes a session's worktree.
	RemoveWorktree(ctx context.Context, worktreePath string) error
}

// Git runs git commands rooted at a single repository directory.
type Git struct {
	dir string
}

// NewGit returns a Git bound to dir, which need not yet be a repository.
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

// IsRepo reports whether dir is inside a git working tree.
func (g *Git) IsRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = g.dir
	return cmd.Run() == nil
}

// BranchName returns the worktree branch name for a session id.
func BranchName(sessionID string) string {
	return BranchPrefix + sessionID
}

// CreateWorktree adds a new worktree at worktreePath on a new branch
// branching off baseBranch, running `git worktree add` from the
// repository root.
func (g *Git) CreateWorktree(ctx context.Context, worktreePath, branchName, baseBranch string) error {
	cmd := exec.CommandContext(ctx, "git", "worktree", "add", "-b", branchName, worktreePath, baseBranch)
	cmd.Dir = g.dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree add failed: %s", strings.TrimSpace(string(output)))
	}

	return nil
}

// RemoveWorktree satisfies GitClient by delegating to the package-level
// RemoveWorktree, which resolves the repository root itself and so needs
// no state from g.
func (g *Git) RemoveWorktree(ctx context.Context, worktreePath string) error {
	return RemoveWorktree(ctx, worktreePath)
}

// RemoveWorktree force-removes the worktree at worktreePath. It resolves
// the main repository root first and runs the remove command from there,
// never from inside the worktree being deleted: `git worktree remove`
// refuses to operate on the working directory it is invoked from once
// that directory no longer exists.
func RemoveWorktree(ctx context.Context, worktreePath string) error {
	repoRoot, err := MainRepoRoot(ctx, worktreePath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "git", "worktree", "remove", "--force", worktreePath)
	cmd.Dir = repoRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree remove failed: %s", strings.TrimSpace(string(output)))
	}

	return nil
}

// MainRepoRoot resolves the shared repository root for repoPath, whether
// repoPath is the main checkout or a linked worktree. It compares
// `--git-dir` against `--git-common-dir`: a linked worktree's git-dir
// lives under the common dir's worktrees/ subdirectory, so when they
// differ the common dir's parent is the real root.
func MainRepoRoot(ctx context.Context, repoPath string) (string, error) {
	gitDir, commonDir, err := gitDirectoryPaths(ctx, repoPath)
	if err != nil {
		return "", err
	}

	if gitDir == commonDir {
		return repoRootFromGitDir(ctx, repoPath, gitDir)
	}

	return repoRootFromGitDir(ctx, repoPath, commonDir)
}

// FindRepoRoot walks upward from dir looking for a .git entry, returning
// the first directory that contains one.
func FindRepoRoot(dir string) (string, bool) {
	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// DetectCurrentBranch reads .git/HEAD under dir's repository root and
// returns the checked-out branch name, or a short detached-HEAD label.
func DetectCurrentBranch(dir string) (string, bool) {
	root, ok := FindRepoRoot(dir)
	if !ok {
		return "", false
	}

	gitDir, ok := resolveGitDir(root)
	if !ok {
		return "", false
	}

	content, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(content))

	if branch, ok := strings.CutPrefix(text, "ref: refs/heads/"); ok {
		return branch, true
	}

	if len(text) >= 7 && isHex(text) {
		return "HEAD@" + text[:7], true
	}

	return "", false
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func resolveGitDir(repoDir string) (string, bool) {
	dotGit := filepath.Join(repoDir, ".git")

	info, err := os.Stat(dotGit)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return dotGit, true
	}

	content, err := os.ReadFile(dotGit)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "gitdir:")
		if !ok {
			continue
		}
		gitDirPath := strings.TrimSpace(rest)
		if filepath.IsAbs(gitDirPath) {
			return gitDirPath, true
		}
		return filepath.Join(repoDir, gitDirPath), true
	}

	return "", false
}

func gitDirectoryPaths(ctx context.Context, repoPath string) (gitDir, commonDir string, err error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-dir", "--git-common-dir")
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("git rev-parse failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("git rev-parse output missing git-dir/git-common-dir")
	}

	return normalizeGitDirPath(repoPath, lines[0]), normalizeGitDirPath(repoPath, lines[1]), nil
}

func normalizeGitDirPath(repoPath, gitPath string) string {
	if !filepath.IsAbs(gitPath) {
		gitPath = filepath.Join(repoPath, gitPath)
	}
	if resolved, err := filepath.EvalSymlinks(gitPath); err == nil {
		return resolved
	}
	return filepath.Clean(gitPath)
}

func repoRootFromGitDir(ctx context.Context, repoPath, gitDir string) (string, error) {
	if filepath.Base(gitDir) == ".git" {
		return filepath.Dir(gitDir), nil
	}

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse --show-toplevel failed: %w", err)
	}

	root := strings.TrimSpace(string(output))
	if root == "" {
		return "", fmt.Errorf("git rev-parse --show-toplevel returned empty output")
	}

	return root, nil
}
