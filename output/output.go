// Package output provides the append-only console that runs write to.
//
// A Sink stores or displays whole lines. A Console wraps a Sink with
// severity helpers that colour lines using ANSI escapes:
//
//	green  success
//	red    error
//	cyan   info
//	yellow warning
package output

import (
	"sync"
)

// Sink is an append-only line writer.
type Sink interface {
	WriteLine(line string)
	Clear()
}

// Severity classifies a console line.
type Severity int

const (
	Plain Severity = iota
	Success
	Error
	Info
	Warning
)

const reset = "\x1b[0m"

var colors = map[Severity]string{
	Success: "\x1b[32m",
	Error:   "\x1b[31m",
	Info:    "\x1b[36m",
	Warning: "\x1b[33m",
}

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "plain"
	}
}

// Colorize wraps text in the escape sequence for sev.
func Colorize(sev Severity, text string) string {
	code, ok := colors[sev]
	if !ok {
		return text
	}
	return code + text + reset
}

// Console serializes writes to a Sink.
type Console struct {
	sink Sink
	mu   sync.Mutex
}

// NewConsole returns a Console writing to sink.
func NewConsole(sink Sink) *Console {
	return &Console{sink: sink}
}

// Write emits text with the given severity.
func (c *Console) Write(sev Severity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink.WriteLine(Colorize(sev, text))
}

func (c *Console) Line(text string)    { c.Write(Plain, text) }
func (c *Console) Success(text string) { c.Write(Success, text) }
func (c *Console) Error(text string)   { c.Write(Error, text) }
func (c *Console) Info(text string)    { c.Write(Info, text) }
func (c *Console) Warning(text string) { c.Write(Warning, text) }

// Clear empties the underlying sink.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink.Clear()
}
