package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone {
		return m.handlePromptKey(msg)
	}

	if m.showDiff {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
			m.showDiff = false
			m.refreshSelectedTranscript()
			return m, nil
		}
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeOnce.Do(func() { close(m.done) })
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			m.refreshSelectedTranscript()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.sessions)-1 {
			m.selected++
			m.refreshSelectedTranscript()
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.beginNewPrompt()
		return m, nil

	case key.Matches(msg, m.keys.Reply):
		if s, ok := m.selectedSession(); ok {
			m.beginReplyPrompt(s.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if s, ok := m.selectedSession(); ok {
			return m, m.doCancel(s.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Merge):
		if s, ok := m.selectedSession(); ok {
			return m, m.doMerge(s.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if s, ok := m.selectedSession(); ok {
			return m, m.doDelete(s.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Diff):
		if s, ok := m.selectedSession(); ok {
			return m, m.doDiff(s.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return m, cmd
}

// beginNewPrompt opens the bottom input line to collect a prompt for a new
// session, cycling through agentCycle with tab before it is submitted.
func (m *Model) beginNewPrompt() {
	m.mode = modeNewPrompt
	m.input.Placeholder = "new session prompt (tab cycles agent, enter submits)"
	m.input.Focus()
}

func (m *Model) beginReplyPrompt(sessionID string) {
	m.mode = modeReplyPrompt
	m.replyTarget = sessionID
	m.input.Placeholder = "reply (enter submits, esc cancels)"
	m.input.Focus()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.resetPrompt()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		prompt := strings.TrimSpace(m.input.Value())
		mode, target := m.mode, m.replyTarget
		agent := agentCycle[m.agentIndex]
		m.resetPrompt()
		if prompt == "" {
			return m, nil
		}
		switch mode {
		case modeNewPrompt:
			return m, m.submitNew(prompt, agent)
		case modeReplyPrompt:
			return m, m.submitReply(target, prompt)
		}
		return m, nil

	case msg.String() == "tab" && m.mode == modeNewPrompt:
		m.agentIndex = (m.agentIndex + 1) % len(agentCycle)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resetPrompt() {
	m.mode = modeNone
	m.replyTarget = ""
	m.input.Blur()
	m.input.SetValue("")
}
