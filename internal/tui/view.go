package tui

import (
	"strings"

	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.columnView())
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m *Model) headerView() string {
	title := "playpen"
	if doc, ok := m.ws.Active(); ok {
		title += " · " + doc.Name
		if lang, ok := m.ws.Languages().Lookup(doc.Language); ok {
			title += " (" + lang.Name + ")"
		}
		state := m.orch.State(doc.Language)
		switch {
		case !m.orch.Supports(doc.Language):
			title += " " + m.styles.failed.Render("no backend")
		case state == orchestrator.Failed:
			title += " " + m.styles.failed.Render(state.String())
		case state != orchestrator.Ready:
			title += " " + m.styles.subtle.Render(state.String())
		}
	}
	return m.styles.header.Render(ansi.Truncate(title, m.width-2, "…"))
}

func (m *Model) footerView() string {
	status := m.status
	if m.running {
		status = m.styles.running.Render(status)
	}
	return m.styles.footer.Render(ansi.Truncate(status, m.width-2, "…"))
}

func (m *Model) sidebarView() string {
	inner := sidebarWidth - 1
	var rows []string
	for _, d := range m.ws.Documents() {
		name := ansi.Truncate(d.Name, inner-2, "…")
		if d.ID == m.docID {
			rows = append(rows, m.styles.selected.Render("▸"+name))
		} else {
			rows = append(rows, m.styles.item.Render(" "+name))
		}
	}
	return m.styles.sidebar.
		Width(inner).
		Height(m.bodyHeight()).
		MaxHeight(m.bodyHeight()).
		Render(strings.Join(rows, "\n"))
}

func (m *Model) columnView() string {
	style := m.styles.handle
	if m.split.Dragging() {
		style = m.styles.handleDrag
	}
	handle := style.Render(strings.Repeat("─", m.rightWidth()))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.editor.View(),
		handle,
		m.console.View(),
	)
}

// refreshConsole re-renders the console lines at the pane width and keeps
// the newest line in view.
func (m *Model) refreshConsole() {
	width := m.console.Width
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		if width > 0 {
			l = ansi.Truncate(l, width, "…")
		}
		rendered[i] = l
	}
	m.console.SetContent(strings.Join(rendered, "\n"))
	m.console.GotoBottom()
}
