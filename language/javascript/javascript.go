// Package javascript provides the JavaScript language adapter and
// playground backend, running QuickJS compiled to WASI.
package javascript

import (
	"context"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
)

// JavaScript implements the executor.Language interface for JavaScript execution.
type JavaScript struct{}

// New returns a JavaScript language adapter.
func New() *JavaScript {
	return &JavaScript{}
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Module returns the embedded QuickJS WASM binary.
func (j *JavaScript) Module(ctx context.Context) ([]byte, error) {
	return quickjswasi.QuickJSWASM, nil
}

// WrapCode returns code unchanged.
func (j *JavaScript) WrapCode(code string) string {
	return code
}

// Args returns the command-line arguments for the QuickJS interpreter.
func (j *JavaScript) Args(wrappedCode string) []string {
	return []string{"qjs", "--std", "-e", wrappedCode}
}
