package manager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentty-run/agentty/internal/assist"
	"github.com/agentty-run/agentty/internal/config"
	"github.com/agentty-run/agentty/internal/db"
	"github.com/agentty-run/agentty/internal/git"
	"github.com/agentty-run/agentty/internal/lock"
	"github.com/agentty-run/agentty/internal/util"
	"github.com/agentty-run/agentty/internal/worker"
)

// Bootstrap runs startup recovery (K) end to end: acquire the single-instance
// lock, open the database, fail every operation still Queued/Running from a
// previous run (resetting its session to Review), and hydrate the Session
// Manager. It returns the ready Manager, its database handle, the lock
// (release it on shutdown), and the loaded config.
//
// This must complete, in this order, before any worker is spawned: steps 2
// and 3 restore the invariant that the operations log holds no unfinished
// row outside of an actively running worker.
func Bootstrap(ctx context.Context, workingDir string) (*Manager, *db.DB, *lock.Handle, config.Config, error) {
	home, err := util.AgenttyHome()
	if err != nil {
		return nil, nil, nil, config.Config{}, fmt.Errorf("resolving agentty home: %w", err)
	}

	handle, err := lock.Acquire(filepath.Join(home, "lock"))
	if err != nil {
		return nil, nil, nil, config.Config{}, err
	}

	cfg, err := config.Load(filepath.Join(home, "config.toml"))
	if err != nil {
		_ = handle.Release()
		return nil, nil, nil, config.Config{}, err
	}

	database, err := db.Open(ctx, filepath.Join(home, "agentty.db"))
	if err != nil {
		_ = handle.Release()
		return nil, nil, nil, config.Config{}, err
	}

	if err := worker.FailUnfinishedOperationsFromPreviousRun(ctx, database); err != nil {
		database.Close()
		_ = handle.Release()
		return nil, nil, nil, config.Config{}, fmt.Errorf("recovering unfinished operations: %w", err)
	}

	branch, _ := git.DetectCurrentBranch(workingDir)

	pool := worker.NewPool(database)
	m, err := New(ctx, database, pool, workingDir, branch, DefaultChannels())
	if err != nil {
		database.Close()
		_ = handle.Release()
		return nil, nil, nil, config.Config{}, err
	}

	m.SetAssistPolicy(assist.Policy{
		MaxAttempts:               cfg.AssistMaxAttempts,
		MaxIdenticalFailureStreak: cfg.AssistMaxStreak,
	})

	return m, database, handle, cfg, nil
}
