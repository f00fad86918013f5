package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <session-id>",
	Short: "Enqueue a session for the project's single merge slot",
	Long: `Merge promotes a session into the active merge slot if it is free,
or enqueues it in FIFO order behind whatever session currently holds it.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	if err := mgr.RequestMerge(ctx, sessionID); err != nil {
		return fmt.Errorf("queuing merge for session %s: %w", sessionID, err)
	}

	return nil
}
