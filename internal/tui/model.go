// Package tui is the interactive terminal shell: a document sidebar, an
// editor and a console stacked in a resizable column.
package tui

import (
	"context"

	"github.com/caffeineduck/playpen/layout"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/workspace"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	sidebarWidth = 24
	headerHeight = 1
	footerHeight = 1
	handleSize   = 1
	nudgeStep    = 5
)

// Options holds the initial split of the editor/console column.
type Options struct {
	Sizes    []float64
	MinSizes []float64
}

type runDoneMsg struct {
	result orchestrator.Result
}

// Model is the bubbletea model for the playground.
type Model struct {
	ctx  context.Context
	ws   *workspace.Workspace
	orch *orchestrator.Orchestrator
	sink *Sink

	split   *layout.Splitter
	editor  textarea.Model
	console viewport.Model
	lines   []string
	styles  styles

	width   int
	height  int
	docID   string
	loaded  string
	running bool
	status  string
}

// New builds a model over ws and orch. Console output written through sink
// is shown in the console pane. The workspace gets a Python document when
// it is empty.
func New(ctx context.Context, ws *workspace.Workspace, orch *orchestrator.Orchestrator, sink *Sink, opts Options) (*Model, error) {
	split, err := layout.New(2, layout.Column, opts.Sizes, opts.MinSizes)
	if err != nil {
		return nil, err
	}

	if ws.Len() == 0 {
		if _, err := ws.Create(ws.Languages()[0].ID); err != nil {
			return nil, err
		}
	}

	ta := textarea.New()
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.Placeholder = "Write some code..."
	ta.Focus()

	m := &Model{
		ctx:     ctx,
		ws:      ws,
		orch:    orch,
		sink:    sink,
		split:   split,
		editor:  ta,
		console: viewport.New(0, 0),
		styles:  newStyles(),
		status:  "ctrl+r run · ctrl+n new · ctrl+w close · ctrl+l language · tab switch · ctrl+c quit",
	}
	m.load()
	return m, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.sink.listen())
}

// Sizes returns the current editor/console split in percent.
func (m *Model) Sizes() []float64 {
	return m.split.Sizes()
}

// Lines returns the console contents.
func (m *Model) Lines() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// load shows the active document in the editor.
func (m *Model) load() {
	doc, ok := m.ws.Active()
	if !ok {
		m.docID = ""
		m.editor.SetValue("")
		m.loaded = ""
		return
	}
	m.docID = doc.ID
	m.editor.SetValue(doc.Content)
	m.loaded = m.editor.Value()
}

// save stores the editor contents in the displayed document once they
// differ from what was loaded, so an untouched default stays a default.
func (m *Model) save() {
	v := m.editor.Value()
	if m.docID == "" || v == m.loaded {
		return
	}
	if err := m.ws.Edit(m.docID, v); err == nil {
		m.loaded = v
	}
}

func (m *Model) bodyHeight() int {
	return max(m.height-headerHeight-footerHeight, 0)
}

func (m *Model) rightWidth() int {
	return max(m.width-sidebarWidth, 0)
}

// resize fits the editor and console to the current split.
func (m *Model) resize() {
	panes, _ := m.split.Arrange(m.bodyHeight(), handleSize)
	w := m.rightWidth()
	m.editor.SetWidth(w)
	m.editor.SetHeight(panes[0].Size)
	m.console.Width = w
	m.console.Height = panes[1].Size
	m.refreshConsole()
}
