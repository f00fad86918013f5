package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <session-id>",
	Short: "Print a session's worktree diff against its base branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	diff, err := mgr.Diff(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("diffing session %s: %w", sessionID, err)
	}

	fmt.Print(diff)
	return nil
}
