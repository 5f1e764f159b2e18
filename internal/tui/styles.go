package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	failed    lipgloss.Style
	pending   lipgloss.Style
	stamp     lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	input     lipgloss.Style
}

func newTheme() theme {
	var (
		mint  = lipgloss.Color("#05ffa1")
		blue  = lipgloss.Color("#7aa2f7")
		pink  = lipgloss.Color("#ff6ac1")
		muted = lipgloss.Color("#6c7086")
	)
	return theme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(mint).Padding(0, 1),
		user:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(mint).Bold(true),
		failed:    lipgloss.NewStyle().Foreground(pink),
		pending:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		stamp:     lipgloss.NewStyle().Foreground(muted),
		status:    lipgloss.NewStyle().Foreground(muted),
		errStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}
