package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replyCmd = &cobra.Command{
	Use:   "reply <session-id> <prompt>",
	Short: "Send a follow-up prompt to an existing session",
	Args:  cobra.ExactArgs(2),
	RunE:  runReply,
}

func init() {
	rootCmd.AddCommand(replyCmd)
}

func runReply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID, prompt := args[0], args[1]

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	if err := mgr.Reply(ctx, sessionID, prompt); err != nil {
		return fmt.Errorf("replying to session %s: %w", sessionID, err)
	}

	return nil
}
