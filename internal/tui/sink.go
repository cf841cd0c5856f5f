package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

type lineMsg string

type clearMsg struct{}

// Sink is an output.Sink that forwards console output into the program's
// update loop.
type Sink struct {
	ch chan tea.Msg
}

// NewSink returns a Sink with room for a burst of buffered lines.
func NewSink() *Sink {
	return &Sink{ch: make(chan tea.Msg, 1024)}
}

func (s *Sink) WriteLine(line string) { s.ch <- lineMsg(line) }
func (s *Sink) Clear()                { s.ch <- clearMsg{} }

// listen waits for the next console message.
func (s *Sink) listen() tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}
