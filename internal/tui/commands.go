package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentty-run/agentty/internal/agentkind"
)

// submitNew runs CreateSession for prompt against agent, using its default
// model and the current branch as the worktree's base.
func (m *Model) submitNew(prompt string, agent agentkind.Kind) tea.Cmd {
	mgr, ctx, branch := m.mgr, m.ctx, m.branch
	model := agentkind.DefaultModelFor(agent)
	return func() tea.Msg {
		id, err := mgr.CreateSession(ctx, prompt, agent, model, branch)
		if err != nil {
			return operationErrMsg{err}
		}
		return sessionCreatedMsg{id}
	}
}

func (m *Model) submitReply(sessionID, prompt string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		if err := mgr.Reply(ctx, sessionID, prompt); err != nil {
			return operationErrMsg{err}
		}
		return nil
	}
}

func (m *Model) doCancel(sessionID string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		if err := mgr.RequestCancel(ctx, sessionID); err != nil {
			return operationErrMsg{err}
		}
		return nil
	}
}

func (m *Model) doMerge(sessionID string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		if err := mgr.RequestMerge(ctx, sessionID); err != nil {
			return operationErrMsg{err}
		}
		return nil
	}
}

func (m *Model) doDelete(sessionID string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		if err := mgr.Delete(ctx, sessionID); err != nil {
			return operationErrMsg{err}
		}
		return nil
	}
}

func (m *Model) doDiff(sessionID string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		text, err := mgr.Diff(ctx, sessionID)
		if err != nil {
			return operationErrMsg{err}
		}
		if text == "" {
			text = "(no changes)"
		}
		return diffLoadedMsg{text}
	}
}
