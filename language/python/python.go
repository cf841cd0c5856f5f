// Package python provides the Python language adapter and playground
// backend, running the RustPython interpreter compiled to WASI.
package python

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/caffeineduck/playpen/internal/fetch"
)

// DefaultRuntimeURL is where the interpreter is fetched from when the
// configured binary does not exist.
const DefaultRuntimeURL = "https://github.com/RustPython/RustPython/releases/latest/download/rustpython.wasm"

var ErrNoRuntime = errors.New("python runtime not configured")

// Config locates the interpreter binary.
type Config struct {
	WasmPath   string       // local path of the interpreter
	RuntimeURL string       // downloaded to WasmPath when it is missing
	Client     *http.Client // used for the download, http.DefaultClient if nil
}

// Python implements the executor.Language interface for Python execution.
type Python struct {
	cfg Config
}

// New returns a Python language adapter.
func New(cfg Config) *Python {
	return &Python{cfg: cfg}
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Module returns the RustPython WASM binary, downloading it first if
// WasmPath does not exist and a RuntimeURL is configured.
func (p *Python) Module(ctx context.Context) ([]byte, error) {
	if p.cfg.WasmPath == "" {
		return nil, ErrNoRuntime
	}

	data, err := os.ReadFile(p.cfg.WasmPath)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) || p.cfg.RuntimeURL == "" {
		return nil, fmt.Errorf("read runtime: %w", err)
	}

	if err := fetch.File(ctx, p.cfg.Client, p.cfg.RuntimeURL, p.cfg.WasmPath); err != nil {
		return nil, fmt.Errorf("download runtime: %w", err)
	}
	return os.ReadFile(p.cfg.WasmPath)
}

// WrapCode returns code unchanged so traceback line numbers match the
// editor.
func (p *Python) WrapCode(code string) string {
	return code
}

// Args returns the command-line arguments for the Python interpreter.
func (p *Python) Args(wrappedCode string) []string {
	return []string{"python", "-c", wrappedCode}
}
