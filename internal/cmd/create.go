package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentty-run/agentty/internal/agentkind"
)

var (
	createAgent string
	createModel string
)

var createCmd = &cobra.Command{
	Use:   "create <prompt>",
	Short: "Start a new session on a fresh worktree",
	Long: `Create materializes a new git worktree on a fresh branch, records a
session in the New state, and hands its first prompt to the configured
agent, mirroring exactly what pressing 'n' does in the interactive view.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createAgent, "agent", "", "agent kind (claude, gemini, codex); defaults to the configured default agent")
	createCmd.Flags().StringVar(&createModel, "model", "", "model identifier; defaults to the agent's default model")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	prompt := args[0]

	mgr, database, lockHandle, cfg, branch, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	defer func() { _ = lockHandle.Release() }()

	agentRaw := createAgent
	if agentRaw == "" {
		agentRaw = cfg.DefaultAgent
	}
	agent, err := agentkind.ParseKind(agentRaw)
	if err != nil {
		return err
	}

	model := agentkind.Model(createModel)
	if model == "" {
		model = agentkind.DefaultModelFor(agent)
	}

	id, err := mgr.CreateSession(ctx, prompt, agent, model, branch)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Println(id)
	return nil
}
