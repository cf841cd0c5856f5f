package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/caffeineduck/playpen/language/golang"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	sink := NewSink()
	orch := orchestrator.New(output.NewConsole(sink))
	orch.Register("go", golang.NewStubBackend())

	ws := workspace.New(workspace.DefaultLanguages)
	m, err := New(context.Background(), ws, orch, sink, Options{
		Sizes:    []float64{60, 40},
		MinSizes: []float64{30, 30},
	})
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 42})
	return m
}

// drain feeds every pending console message into the model.
func drain(m *Model) {
	for {
		select {
		case msg := <-m.sink.ch:
			m.Update(msg)
		default:
			return
		}
	}
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestNewCreatesDocument(t *testing.T) {
	m := newTestModel(t)

	doc, ok := m.ws.Active()
	require.True(t, ok)
	require.Equal(t, "main.py", doc.Name)
	require.Equal(t, doc.Content, m.editor.Value())
}

func TestNewRejectsBadMinimums(t *testing.T) {
	_, err := New(context.Background(), workspace.New(nil), orchestrator.New(output.NewConsole(NewSink())), NewSink(),
		Options{Sizes: []float64{50, 50}, MinSizes: []float64{70, 70}})
	require.Error(t, err)
}

func TestResizeFitsPanes(t *testing.T) {
	m := newTestModel(t)

	// 40 body rows less one handle row, split 60/40.
	require.Equal(t, 23, m.editor.Height())
	require.Equal(t, 16, m.console.Height)
	require.Equal(t, 100-sidebarWidth, m.console.Width)
}

func TestTypingEditsDocument(t *testing.T) {
	m := newTestModel(t)
	m.editor.SetValue("")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x = 1")})

	doc, _ := m.ws.Active()
	require.Equal(t, "x = 1", doc.Content)
}

func TestDocumentKeys(t *testing.T) {
	m := newTestModel(t)
	first, _ := m.ws.Active()

	m.Update(key(tea.KeyCtrlN))
	require.Equal(t, 2, m.ws.Len())
	second, _ := m.ws.Active()
	require.Equal(t, "new_file_1.py", second.Name)
	require.Equal(t, second.ID, m.docID)

	m.Update(key(tea.KeyCtrlPgDown))
	active, _ := m.ws.Active()
	require.Equal(t, first.ID, active.ID)

	m.Update(key(tea.KeyCtrlPgUp))
	active, _ = m.ws.Active()
	require.Equal(t, second.ID, active.ID)

	m.Update(key(tea.KeyCtrlW))
	require.Equal(t, 1, m.ws.Len())
	active, _ = m.ws.Active()
	require.Equal(t, first.ID, active.ID)
	require.Equal(t, active.Content, m.editor.Value())
}

func TestTabIndentsEditor(t *testing.T) {
	m := newTestModel(t)
	before, _ := m.ws.Active()

	m.Update(key(tea.KeyTab))

	after, _ := m.ws.Active()
	require.Equal(t, 1, m.ws.Len())
	require.Equal(t, before.ID, after.ID)
	require.Greater(t, len(after.Content), len(before.Content))
	require.Equal(t, after.Content, m.editor.Value())
}

func TestSwitchingKeepsUnmodifiedDefault(t *testing.T) {
	m := newTestModel(t)
	m.Update(key(tea.KeyCtrlL))
	m.Update(key(tea.KeyCtrlL)) // go, whose default contains tabs
	m.Update(key(tea.KeyCtrlL))

	doc, _ := m.ws.Active()
	require.Equal(t, "cpp", doc.Language)
	require.Contains(t, doc.Content, "#include <iostream>")
}

func TestCycleLanguage(t *testing.T) {
	m := newTestModel(t)

	m.Update(key(tea.KeyCtrlL))
	doc, _ := m.ws.Active()
	require.Equal(t, "javascript", doc.Language)
	require.Equal(t, "main.js", doc.Name)
	require.Contains(t, m.editor.Value(), "console.log")

	m.Update(key(tea.KeyCtrlL))
	m.Update(key(tea.KeyCtrlL))
	m.Update(key(tea.KeyCtrlL))
	doc, _ = m.ws.Active()
	require.Equal(t, "python", doc.Language)
}

func TestRunIgnoredWhileRunning(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(key(tea.KeyCtrlR))
	require.NotNil(t, cmd)
	require.True(t, m.running)

	_, again := m.Update(key(tea.KeyCtrlR))
	require.Nil(t, again)
	require.Equal(t, "already running", m.status)
}

func TestRunGoHello(t *testing.T) {
	m := newTestModel(t)
	m.Update(key(tea.KeyCtrlL))
	m.Update(key(tea.KeyCtrlL)) // go

	_, cmd := m.Update(key(tea.KeyCtrlR))
	msg := cmd().(runDoneMsg)
	drain(m)
	m.Update(msg)

	require.True(t, msg.result.Success)
	plain := strings.Join(m.Lines(), "\n")
	plain = ansi.Strip(plain)
	require.Contains(t, plain, "Running go code...")
	require.Contains(t, plain, "Hello, World!")
	require.Contains(t, plain, "Program finished with exit code 0")
	require.Contains(t, m.status, "finished in")
}

func TestRunWithoutBackend(t *testing.T) {
	m := newTestModel(t)
	for range 3 {
		m.Update(key(tea.KeyCtrlL)) // cpp
	}

	_, cmd := m.Update(key(tea.KeyCtrlR))
	msg := cmd().(runDoneMsg)
	drain(m)
	m.Update(msg)

	require.False(t, msg.result.Success)
	require.Equal(t, "run failed", m.status)
	require.Contains(t, ansi.Strip(m.View()), "no backend")
}

func TestClearMessage(t *testing.T) {
	m := newTestModel(t)
	m.Update(lineMsg("one"))
	m.Update(lineMsg("two"))
	require.Equal(t, []string{"one", "two"}, m.Lines())

	m.Update(clearMsg{})
	require.Empty(t, m.Lines())
}

func TestNudgeKeys(t *testing.T) {
	m := newTestModel(t)

	m.Update(key(tea.KeyCtrlDown))
	require.InDeltaSlice(t, []float64{65, 35}, m.Sizes(), 1e-6)

	m.Update(key(tea.KeyCtrlUp))
	m.Update(key(tea.KeyCtrlUp))
	require.InDeltaSlice(t, []float64{55, 45}, m.Sizes(), 1e-6)

	for range 10 {
		m.Update(key(tea.KeyCtrlUp))
	}
	require.InDeltaSlice(t, []float64{30, 70}, m.Sizes(), 1e-6)
}

func TestMouseDragResizes(t *testing.T) {
	m := newTestModel(t)
	// The handle sits on body row 23, screen row 24.
	handleY := headerHeight + 23

	m.Update(tea.MouseMsg{X: 50, Y: handleY, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.True(t, m.split.Dragging())

	// Up 8 of 40 rows: -20%.
	m.Update(tea.MouseMsg{X: 50, Y: handleY - 8, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	require.InDeltaSlice(t, []float64{40, 60}, m.Sizes(), 1e-6)
	require.Less(t, m.editor.Height(), 23)

	m.Update(tea.MouseMsg{X: 50, Y: handleY - 8, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	require.False(t, m.split.Dragging())

	// Motion after release changes nothing.
	m.Update(tea.MouseMsg{X: 50, Y: 2, Action: tea.MouseActionMotion})
	require.InDeltaSlice(t, []float64{40, 60}, m.Sizes(), 1e-6)
}

func TestMouseOffHandleDoesNotDrag(t *testing.T) {
	m := newTestModel(t)

	m.Update(tea.MouseMsg{X: 50, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.False(t, m.split.Dragging())
}

func TestSidebarClickSelects(t *testing.T) {
	m := newTestModel(t)
	first, _ := m.ws.Active()
	m.Update(key(tea.KeyCtrlN))

	m.Update(tea.MouseMsg{X: 3, Y: headerHeight, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	active, _ := m.ws.Active()
	require.Equal(t, first.ID, active.ID)
}

func TestViewTruncatesConsoleLines(t *testing.T) {
	m := newTestModel(t)
	m.Update(lineMsg(output.Colorize(output.Error, strings.Repeat("x", 300))))

	for _, line := range strings.Split(m.console.View(), "\n") {
		require.LessOrEqual(t, ansi.StringWidth(line), m.console.Width)
	}
	require.Contains(t, m.View(), "main.py")
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
