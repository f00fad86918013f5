package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentty-run/agentty/internal/style"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List every session and its current state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mgr, database, lockHandle, _, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	sessions := mgr.Sessions()
	if len(sessions) == 0 {
		fmt.Println(style.Dim.Render("No sessions."))
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "ID", Width: 36},
		style.Column{Name: "AGENT", Width: 8},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "SIZE", Width: 5},
		style.Column{Name: "TITLE", Width: 40},
	)
	for _, s := range sessions {
		tbl.AddRow(s.ID, string(s.Agent), string(s.Status), string(s.Size), s.DisplayTitle())
	}

	fmt.Print(tbl.Render())
	return nil
}
