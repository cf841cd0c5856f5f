package javascript

import (
	"context"
	"errors"
	"strings"

	"github.com/caffeineduck/playpen/executor"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
)

// Backend runs JavaScript documents for the orchestrator. It has no
// optional libraries.
type Backend struct {
	exec *executor.Executor
	lang *JavaScript
}

// NewBackend returns a Backend running on exec.
func NewBackend(exec *executor.Executor) *Backend {
	return &Backend{exec: exec, lang: New()}
}

func (b *Backend) Name() string {
	return "JavaScript"
}

func (b *Backend) Init(ctx context.Context, console *output.Console) error {
	if b.exec.Compiled(b.lang) {
		return nil
	}
	console.Line("Compiling QuickJS...")
	return b.exec.Compile(ctx, b.lang)
}

func (b *Backend) Execute(ctx context.Context, code string, console *output.Console) error {
	result := b.exec.Run(ctx, b.lang, code,
		executor.WithTimeout(0),
		executor.WithStdout(console.Line))

	if result.Error == nil {
		for _, line := range strings.Split(strings.TrimRight(result.Stderr, "\n"), "\n") {
			if line != "" {
				console.Warning(line)
			}
		}
		return nil
	}

	var exitErr *executor.ExitError
	if errors.As(result.Error, &exitErr) {
		return parseError(exitErr.Stderr, exitErr)
	}
	return result.Error
}

// parseError splits a QuickJS uncaught exception into its message line and
// the "at ..." stack lines that follow.
func parseError(stderr string, cause error) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return &orchestrator.ExecError{Message: cause.Error()}
	}

	message, stack, _ := strings.Cut(stderr, "\n")
	return &orchestrator.ExecError{
		Message:   strings.TrimSpace(message),
		Traceback: stack,
	}
}
