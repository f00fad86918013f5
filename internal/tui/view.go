package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	header := bold.Render("agentty") + "  " + dim.Render(m.branch)

	list := m.renderSessionList()
	right := transcriptPaneStyle.Render(m.transcript.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, right)

	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderSessionList() string {
	width := listPaneWidth(m.width)
	var b strings.Builder

	if len(m.sessions) == 0 {
		b.WriteString(dim.Render("No sessions yet. Press 'n' to start one."))
	}

	for i, s := range m.sessions {
		title := s.DisplayTitle()
		if title == "No title" {
			title = truncate(s.Prompt, width-10)
		}
		line := fmt.Sprintf("%-8s %s", renderStatus(string(s.Status)), title)
		if i == m.selected {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := listPaneStyle.Width(width)
	if !m.showDiff {
		style = style.BorderForeground(focusedBorder)
	}
	return style.Render(b.String())
}

func (m *Model) renderFooter() string {
	var lines []string

	if m.mode != modeNone {
		prefix := "reply> "
		if m.mode == modeNewPrompt {
			prefix = fmt.Sprintf("new [%s]> ", agentCycle[m.agentIndex])
		}
		lines = append(lines, prefix+m.input.View())
	} else if m.statusMsg != "" {
		style := dim
		if m.statusErr {
			style = danger
		}
		lines = append(lines, style.Render(m.statusMsg))
	}

	if m.showHelp {
		lines = append(lines, dim.Render("n:new r:reply c:cancel m:merge x:delete v:diff esc:back q:quit"))
	} else {
		lines = append(lines, dim.Render("? for help"))
	}

	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}
