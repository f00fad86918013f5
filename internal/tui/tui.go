package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentty-run/agentty/internal/config"
	"github.com/agentty-run/agentty/internal/manager"
)

// Run drives the interactive session list program to completion, returning
// once the user quits.
func Run(ctx context.Context, mgr *manager.Manager, cfg config.Config, branch string) error {
	m := New(ctx, mgr, cfg, branch)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
