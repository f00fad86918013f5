package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Request cancellation of a session's in-flight turn",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	if err := mgr.RequestCancel(ctx, sessionID); err != nil {
		return fmt.Errorf("canceling session %s: %w", sessionID, err)
	}

	return nil
}
