package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header     lipgloss.Style
	footer     lipgloss.Style
	sidebar    lipgloss.Style
	item       lipgloss.Style
	selected   lipgloss.Style
	handle     lipgloss.Style
	handleDrag lipgloss.Style
	running    lipgloss.Style
	failed     lipgloss.Style
	subtle     lipgloss.Style
}

func newStyles() styles {
	return styles{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AD8CFF")).
			Bold(true).
			Padding(0, 1),

		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1),

		sidebar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("#444444")),

		item: lipgloss.NewStyle().
			Padding(0, 1),

		selected: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#60A5FA")).
			Bold(true),

		handle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444")),

		handleDrag: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA")),

		running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FACC15")),

		failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")),

		subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}
