package golang

import (
	"context"
	"strings"
	"sync"

	"github.com/caffeineduck/playpen/output"
)

// StubBackend runs Go documents through the simulated Transpiler.
type StubBackend struct {
	transpiler Transpiler

	mu          sync.Mutex
	initialized bool
}

// NewStubBackend returns a StubBackend.
func NewStubBackend() *StubBackend {
	return &StubBackend{}
}

func (b *StubBackend) Name() string {
	return "Go"
}

func (b *StubBackend) Init(ctx context.Context, console *output.Console) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	console.Line("Loading simulated Go toolchain...")
	b.initialized = true
	return nil
}

func (b *StubBackend) Execute(ctx context.Context, code string, console *output.Console) error {
	console.Info("Transpiling and executing Go code...")
	for _, w := range b.transpiler.Validate(code) {
		console.Warning(w)
	}

	console.Info("Transpiling Go code to JavaScript...")
	script := b.transpiler.Compile(code)
	if err := ctx.Err(); err != nil {
		return err
	}

	console.Info("Executing compiled JavaScript...")
	out := b.transpiler.Execute(script)

	console.Success("Go code executed successfully:")
	for _, line := range strings.Split(out, "\n") {
		console.Line(line)
	}
	return nil
}
