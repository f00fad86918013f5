package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Cancel, tear down the worktree, and remove a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	if err := mgr.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	return nil
}
