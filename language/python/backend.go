package python

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caffeineduck/playpen/detect"
	"github.com/caffeineduck/playpen/executor"
	"github.com/caffeineduck/playpen/language/python/pypi"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"go.uber.org/zap"
)

// PackagesMount is where the packages directory appears inside the sandbox.
const PackagesMount = "/packages"

// Backend runs Python documents for the orchestrator.
type Backend struct {
	exec      *executor.Executor
	lang      *Python
	installer *pypi.Installer
	logger    *zap.Logger

	mu  sync.Mutex
	env map[string]string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithInstaller enables optional libraries, installed into and imported
// from the installer's directory.
func WithInstaller(i *pypi.Installer) BackendOption {
	return func(b *Backend) {
		b.installer = i
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) BackendOption {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend returns a Backend running lang on exec.
func NewBackend(exec *executor.Executor, lang *Python, opts ...BackendOption) *Backend {
	b := &Backend{
		exec:   exec,
		lang:   lang,
		logger: zap.NewNop(),
		env:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string {
	return "Python"
}

// Init loads and compiles the interpreter.
func (b *Backend) Init(ctx context.Context, console *output.Console) error {
	if b.installer != nil {
		if err := os.MkdirAll(b.installer.Dir(), 0755); err != nil {
			return fmt.Errorf("create packages dir: %w", err)
		}
	}
	if b.exec.Compiled(b.lang) {
		return nil
	}
	console.Line("Loading Python runtime... This may take a moment.")
	return b.exec.Compile(ctx, b.lang)
}

// ModuleName returns the name lib is imported by, which differs from the
// distribution name for packages like scikit-learn.
func ModuleName(lib detect.Library) string {
	if strings.Contains(lib.Name, "-") && lib.Alias != "" {
		return lib.Alias
	}
	return lib.Name
}

// LoadLibrary makes lib importable, installing it from the package index
// if it is not in the packages directory yet.
func (b *Backend) LoadLibrary(ctx context.Context, lib detect.Library, console *output.Console) error {
	if b.installer == nil {
		return errors.New("no packages directory configured")
	}

	module := ModuleName(lib)
	if !b.installer.Installed(module) {
		progress := func(msg string) { console.Line("   " + msg) }
		if err := b.installer.Install(ctx, lib.Name, progress); err != nil {
			return err
		}
		if !b.installer.Installed(module) {
			return fmt.Errorf("installed %s but module %q was not found", lib.Name, module)
		}
	}

	if lib.Name == "matplotlib" {
		b.setEnv("MPLBACKEND", "Agg")
		console.Success("Matplotlib configured for headless rendering")
	}
	b.logger.Info("library ready", zap.String("library", lib.Name), zap.String("module", module))
	return nil
}

func (b *Backend) setEnv(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.env[key] = value
}

func (b *Backend) runOptions(console *output.Console) []executor.Option {
	opts := []executor.Option{
		// The orchestrator's context carries the deadline.
		executor.WithTimeout(0),
		executor.WithStdout(console.Line),
	}
	if b.installer != nil {
		opts = append(opts,
			executor.WithMount(PackagesMount, b.installer.Dir()),
			executor.WithEnv("PYTHONPATH", PackagesMount))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.env {
		opts = append(opts, executor.WithEnv(k, v))
	}
	return opts
}

// Execute runs code, streaming stdout lines to console. Stderr is held
// back: on success it is shown as warnings, on failure it becomes the
// error message and traceback.
func (b *Backend) Execute(ctx context.Context, code string, console *output.Console) error {
	result := b.exec.Run(ctx, b.lang, code, b.runOptions(console)...)

	if result.Error == nil {
		for _, line := range splitLines(result.Stderr) {
			console.Warning(line)
		}
		return nil
	}

	var exitErr *executor.ExitError
	if errors.As(result.Error, &exitErr) {
		return parseError(exitErr.Stderr, exitErr)
	}
	return result.Error
}

// parseError turns interpreter stderr into an ExecError. The message is the
// final line ("ZeroDivisionError: division by zero"); a traceback is
// attached when stderr holds one.
func parseError(stderr string, cause error) error {
	lines := splitLines(stderr)
	if len(lines) == 0 {
		return &orchestrator.ExecError{Message: cause.Error()}
	}

	execErr := &orchestrator.ExecError{Message: strings.TrimSpace(lines[len(lines)-1])}
	if strings.HasPrefix(lines[0], "Traceback") {
		execErr.Traceback = strings.Join(lines, "\n")
	}
	return execErr
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
