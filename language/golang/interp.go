package golang

import (
	"context"
	"fmt"
	"strings"

	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

// InterpBackend evaluates Go programs with yaegi. Every run gets a fresh
// interpreter, so no package state leaks between runs.
type InterpBackend struct {
	logger *zap.Logger
}

// NewInterpBackend returns an InterpBackend. A nil logger discards logs.
func NewInterpBackend(logger *zap.Logger) *InterpBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterpBackend{logger: logger}
}

func (b *InterpBackend) Name() string {
	return "Go"
}

// Init checks that the standard library symbols can be loaded.
func (b *InterpBackend) Init(ctx context.Context, console *output.Console) error {
	console.Line("Loading Go interpreter...")
	_, err := b.newInterpreter(output.NewLineWriter(func(string) {}), output.NewLineWriter(func(string) {}))
	return err
}

func (b *InterpBackend) newInterpreter(stdout, stderr *output.LineWriter) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	return i, nil
}

// Execute evaluates code as a complete program and runs its main function.
func (b *InterpBackend) Execute(ctx context.Context, code string, console *output.Console) (err error) {
	stdout := output.NewLineWriter(console.Line)
	stderr := output.NewLineWriter(console.Warning)
	defer func() {
		stdout.Flush()
		stderr.Flush()
	}()

	i, err := b.newInterpreter(stdout, stderr)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = &orchestrator.ExecError{Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if _, err := i.EvalWithContext(ctx, code); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Debug("eval failed", zap.Error(err))
		message, trace, _ := strings.Cut(strings.TrimSpace(err.Error()), "\n")
		return &orchestrator.ExecError{Message: message, Traceback: trace}
	}
	return nil
}
