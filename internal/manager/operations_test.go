package manager

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/agentty-run/agentty/internal/agentkind"
	"github.com/agentty-run/agentty/internal/channel"
	"github.com/agentty-run/agentty/internal/db"
	"github.com/agentty-run/agentty/internal/status"
	"github.com/agentty-run/agentty/internal/worker"
)

// initTestRepo creates a real git repository in a temp dir with one commit,
// so operations that shell out to git worktree add/remove have something to
// act on.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}

	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial")

	return dir
}

// currentBranch returns the branch HEAD points to after initTestRepo, which
// is "master" or "main" depending on the host's git defaults.
func currentBranch(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "branch", "--show-current")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git branch --show-current: %v", err)
	}
	branch := string(out)
	for len(branch) > 0 && (branch[len(branch)-1] == '\n' || branch[len(branch)-1] == '\r') {
		branch = branch[:len(branch)-1]
	}
	return branch
}

// newRepoBackedManager is like newTestManager but points the Manager at a
// real git repository instead of a nonexistent /tmp/project path, so
// CreateSession and Delete can exercise their git.CreateWorktree /
// git.RemoveWorktree calls end to end.
func newRepoBackedManager(t *testing.T) (*Manager, string, string) {
	t.Helper()
	ctx := context.Background()

	repoDir := initTestRepo(t)
	branch := currentBranch(t, repoDir)

	database, err := db.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	pool := worker.NewPool(database)
	m, err := New(ctx, database, pool, repoDir, branch, map[agentkind.Kind]channel.AgentChannel{})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}

	return m, repoDir, branch
}

// newRepoBackedManagerWithChannel is newRepoBackedManager with a caller-
// supplied channel wired in for agentkind.Claude, letting assist-loop tests
// control turn success/failure without a real agent subprocess.
func newRepoBackedManagerWithChannel(t *testing.T, repoDir, branch string, ch channel.AgentChannel) (*Manager, *db.DB, error) {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	pool := worker.NewPool(database)
	m, err := New(ctx, database, pool, repoDir, branch, map[agentkind.Kind]channel.AgentChannel{
		agentkind.Claude: ch,
	})
	return m, database, err
}

func TestCreateSessionMaterializesWorktreeAndSession(t *testing.T) {
	ctx := context.Background()
	m, _, branch := newRepoBackedManager(t)

	sessionID, err := m.CreateSession(ctx, "do the thing", agentkind.Claude, agentkind.DefaultModelFor(agentkind.Claude), branch)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := os.Stat(m.WorktreePath(sessionID)); err != nil {
		t.Fatalf("expected worktree directory to exist: %v", err)
	}

	s, ok := m.SessionByID(sessionID)
	if !ok {
		t.Fatal("expected session to be loaded after CreateSession")
	}
	if s.Status != status.InProgress {
		t.Errorf("expected session status InProgress, got %v", s.Status)
	}
	if s.BaseBranch != branch {
		t.Errorf("expected base branch %q, got %q", branch, s.BaseBranch)
	}
	if s.Folder != m.WorktreePath(sessionID) {
		t.Errorf("expected folder %q, got %q", m.WorktreePath(sessionID), s.Folder)
	}

	// RefreshSessions (from CreateSession's m.Refresh) then the New -> InProgress
	// status transition.
	if ev := drainEvent(t, m); ev.Kind != EventRefreshSessions {
		t.Fatalf("expected EventRefreshSessions, got %+v", ev)
	}
	if ev := drainEvent(t, m); ev.Kind != EventStatusChanged || ev.To != status.InProgress {
		t.Fatalf("expected EventStatusChanged to InProgress, got %+v", ev)
	}
}

func TestCreateSessionFailsForUnknownBaseBranch(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newRepoBackedManager(t)

	if _, err := m.CreateSession(ctx, "do the thing", agentkind.Claude, agentkind.DefaultModelFor(agentkind.Claude), "no-such-branch"); err == nil {
		t.Fatal("expected CreateSession to fail for a nonexistent base branch")
	}
}

func TestDeleteRemovesWorktreeAndSession(t *testing.T) {
	ctx := context.Background()
	m, _, branch := newRepoBackedManager(t)

	sessionID, err := m.CreateSession(ctx, "do the thing", agentkind.Claude, agentkind.DefaultModelFor(agentkind.Claude), branch)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	drainEvent(t, m) // RefreshSessions
	drainEvent(t, m) // New -> InProgress

	worktreePath := m.WorktreePath(sessionID)

	if err := m.Delete(ctx, sessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := m.SessionByID(sessionID); ok {
		t.Fatal("expected session to be gone after Delete")
	}

	if _, err := os.Stat(worktreePath); !os.IsNotExist(err) {
		t.Errorf("expected worktree directory to be removed, stat err: %v", err)
	}
}

func TestDeleteUnknownSessionReturnsError(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newRepoBackedManager(t)

	if err := m.Delete(ctx, "does-not-exist"); err == nil {
		t.Fatal("expected Delete to fail for an unknown session")
	}
}

func TestDiffRendersWorktreeChanges(t *testing.T) {
	ctx := context.Background()
	m, _, branch := newRepoBackedManager(t)

	sessionID, err := m.CreateSession(ctx, "do the thing", agentkind.Claude, agentkind.DefaultModelFor(agentkind.Claude), branch)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	drainEvent(t, m)
	drainEvent(t, m)

	s, ok := m.SessionByID(sessionID)
	if !ok {
		t.Fatal("expected session to be loaded")
	}

	if err := os.WriteFile(filepath.Join(s.Folder, "new-file.txt"), []byte("content\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	addCmd := exec.Command("git", "add", ".")
	addCmd.Dir = s.Folder
	if err := addCmd.Run(); err != nil {
		t.Fatalf("git add: %v", err)
	}
	commitCmd := exec.Command("git", "-c", "user.email=test@test.com", "-c", "user.name=Test User", "commit", "-m", "add file")
	commitCmd.Dir = s.Folder
	if err := commitCmd.Run(); err != nil {
		t.Fatalf("git commit: %v", err)
	}

	diff, err := m.Diff(ctx, sessionID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if diff == "" {
		t.Error("expected non-empty diff after committing a new file")
	}
}
