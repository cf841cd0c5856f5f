package tui

import (
	"fmt"
	"time"

	"github.com/caffeineduck/playpen/workspace"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case lineMsg:
		m.lines = append(m.lines, string(msg))
		m.refreshConsole()
		return m, m.sink.listen()

	case clearMsg:
		m.lines = nil
		m.refreshConsole()
		return m, m.sink.listen()

	case runDoneMsg:
		m.running = false
		if msg.result.Success {
			m.status = fmt.Sprintf("finished in %s", msg.result.Duration.Round(time.Millisecond))
		} else {
			m.status = "run failed"
		}
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.save()
			return m, tea.Quit
		case "ctrl+r":
			return m, m.run()
		case "ctrl+n":
			m.newDocument()
			return m, nil
		case "ctrl+w":
			m.deleteDocument()
			return m, nil
		case "ctrl+l":
			m.cycleLanguage()
			return m, nil
		case "ctrl+pgdown":
			m.selectOffset(1)
			return m, nil
		case "ctrl+pgup":
			m.selectOffset(-1)
			return m, nil
		case "tab":
			// The textarea ignores tab; indentation goes into the document.
			m.editor.InsertString("\t")
			m.save()
			return m, nil
		case "ctrl+up":
			m.nudge(-nudgeStep)
			return m, nil
		case "ctrl+down":
			m.nudge(nudgeStep)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.console, cmd = m.console.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if _, ok := msg.(tea.KeyMsg); ok {
		m.save()
	}
	return m, cmd
}

// run starts the active document on the orchestrator. Only one run is in
// flight from the UI at a time.
func (m *Model) run() tea.Cmd {
	if m.running {
		m.status = "already running"
		return nil
	}
	m.save()
	doc, ok := m.ws.Active()
	if !ok {
		m.status = "no document"
		return nil
	}
	m.running = true
	m.status = "running " + doc.Name + "..."
	ctx, orch := m.ctx, m.orch
	return func() tea.Msg {
		return runDoneMsg{result: orch.Run(ctx, doc)}
	}
}

func (m *Model) newDocument() {
	m.save()
	lang := m.ws.Languages()[0].ID
	if doc, ok := m.ws.Active(); ok {
		lang = doc.Language
	}
	doc, err := m.ws.Create(lang)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = "created " + doc.Name
	m.load()
}

func (m *Model) deleteDocument() {
	if m.docID == "" {
		return
	}
	doc, _ := m.ws.Get(m.docID)
	if err := m.ws.Delete(m.docID); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "closed " + doc.Name
	m.load()
}

func (m *Model) cycleLanguage() {
	doc, ok := m.ws.Active()
	if !ok {
		return
	}
	m.save()
	langs := m.ws.Languages()
	next := langs[0]
	for i, l := range langs {
		if l.ID == doc.Language {
			next = langs[(i+1)%len(langs)]
			break
		}
	}
	if err := m.ws.ChangeLanguage(doc.ID, next.ID); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "language: " + next.Name
	m.load()
}

func (m *Model) selectOffset(delta int) {
	docs := m.ws.Documents()
	if len(docs) < 2 {
		return
	}
	m.save()
	cur := indexOf(docs, m.docID)
	next := docs[(cur+delta+len(docs))%len(docs)]
	if err := m.ws.Select(next.ID); err != nil {
		m.status = err.Error()
		return
	}
	m.load()
}

func indexOf(docs []workspace.Document, id string) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return 0
}

func (m *Model) nudge(delta float64) {
	if err := m.split.Nudge(0, delta); err != nil {
		m.status = err.Error()
		return
	}
	m.resize()
}

// handleMouse drags the editor/console handle and scrolls the console.
// Coordinates are translated into the right column's body.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	y := msg.Y - headerHeight
	total := m.bodyHeight()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			break
		}
		if msg.X < sidebarWidth {
			m.clickSidebar(y)
			return nil
		}
		if h := m.split.HandleAt(y, total, handleSize); h >= 0 {
			_ = m.split.Begin(h, float64(y))
			return nil
		}
	case tea.MouseActionMotion:
		if m.split.Dragging() {
			if err := m.split.Move(float64(y), float64(total)); err == nil {
				m.resize()
			}
			return nil
		}
	case tea.MouseActionRelease:
		if m.split.Dragging() {
			m.split.End()
			return nil
		}
	}

	if msg.X >= sidebarWidth {
		panes, _ := m.split.Arrange(total, handleSize)
		if panes[1].Contains(y) {
			var cmd tea.Cmd
			m.console, cmd = m.console.Update(msg)
			return cmd
		}
	}
	return nil
}

// clickSidebar selects the document on sidebar row y.
func (m *Model) clickSidebar(y int) {
	docs := m.ws.Documents()
	if y < 0 || y >= len(docs) {
		return
	}
	m.save()
	if err := m.ws.Select(docs[y].ID); err == nil {
		m.load()
	}
}
