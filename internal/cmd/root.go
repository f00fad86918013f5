// Package cmd wires Agentty's command-line surface: a root command that
// launches the interactive session list, plus one-shot subcommands for
// scripting a session's lifecycle without the TUI.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentty-run/agentty/internal/config"
	"github.com/agentty-run/agentty/internal/db"
	"github.com/agentty-run/agentty/internal/git"
	"github.com/agentty-run/agentty/internal/lock"
	"github.com/agentty-run/agentty/internal/manager"
	"github.com/agentty-run/agentty/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "agentty",
	Short: "Run many autonomous coding-agent sessions in parallel against a git repo",
	Long: `Agentty is a terminal control plane for running many autonomous
coding-agent sessions against worktrees of a single git repository.

Run with no subcommand to open the interactive session list. Each
subcommand below performs one session operation and exits, for scripting.`,
	RunE: runInteractive,
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mgr, database, lockHandle, cfg, branch, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	return tui.Run(ctx, mgr, cfg, branch)
}

// bootstrap resolves the working directory, runs manager.Bootstrap (startup
// recovery: lock, config, db, unfinished-operation recovery, hydration), and
// also returns the branch it detected, which every subcommand below needs to
// pass through to the manager and TUI alike.
func bootstrap(ctx context.Context) (*manager.Manager, *db.DB, *lock.Handle, config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, config.Config{}, "", fmt.Errorf("resolving working directory: %w", err)
	}

	mgr, database, lockHandle, cfg, err := manager.Bootstrap(ctx, cwd)
	if err != nil {
		return nil, nil, nil, config.Config{}, "", err
	}

	branch, _ := git.DetectCurrentBranch(cwd)

	return mgr, database, lockHandle, cfg, branch, nil
}
