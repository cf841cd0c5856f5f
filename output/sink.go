package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Buffer is an in-memory Sink. It is safe for concurrent use.
type Buffer struct {
	lines []string
	mu    sync.Mutex
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) WriteLine(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
}

// Lines returns a copy of the stored lines, escapes included.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Plain returns the stored lines with escape sequences removed.
func (b *Buffer) Plain() []string {
	lines := b.Lines()
	for i, l := range lines {
		lines[i] = ansi.Strip(l)
	}
	return lines
}

// Len returns the number of stored lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Writer is a Sink over an io.Writer. Clear is a no-op unless the writer
// is a terminal, in which case it emits the erase-display sequence.
type Writer struct {
	w        io.Writer
	noColor  bool
	terminal bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithoutColor strips escape sequences before writing.
func WithoutColor() WriterOption {
	return func(w *Writer) {
		w.noColor = true
	}
}

// WithTerminal makes Clear erase the screen.
func WithTerminal() WriterOption {
	return func(w *Writer) {
		w.terminal = true
	}
}

// NewWriter returns a Sink writing one line per WriteLine to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	s := &Writer{w: w}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Writer) WriteLine(line string) {
	if s.noColor {
		line = ansi.Strip(line)
	}
	fmt.Fprintln(s.w, line)
}

func (s *Writer) Clear() {
	if s.terminal {
		fmt.Fprint(s.w, "\x1b[2J\x1b[H")
	}
}

// LineWriter is an io.Writer that calls fn once per complete line.
// Carriage returns before the newline are dropped.
type LineWriter struct {
	fn  func(string)
	buf bytes.Buffer
	mu  sync.Mutex
}

// NewLineWriter returns a LineWriter delivering lines to fn.
func NewLineWriter(fn func(string)) *LineWriter {
	return &LineWriter{fn: fn}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx == -1 {
			break
		}
		line := string(bytes.TrimSuffix(w.buf.Next(idx+1)[:idx], []byte("\r")))
		w.fn(line)
	}
	return len(p), nil
}

// Flush delivers any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	w.buf.Reset()
	w.fn(line)
}
