package tui

import "github.com/charmbracelet/lipgloss"

var (
	bold   = lipgloss.NewStyle().Bold(true)
	dim    = lipgloss.NewStyle().Faint(true)
	danger = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	listPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	transcriptPaneStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	focusedBorder = lipgloss.Color("39")

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Bold(true)

	statusStyles = map[string]lipgloss.Style{
		"New":        dim,
		"InProgress": lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"Review":     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		"Rebasing":   lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"Merging":    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"Done":       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"Canceled":   dim,
	}
)

// renderStatus colors a status label the way the session list badges it.
func renderStatus(st string) string {
	style, ok := statusStyles[st]
	if !ok || st == "Done" {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	}
	return style.Render(st)
}
