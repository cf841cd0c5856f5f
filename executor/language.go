package executor

import "context"

// Language defines the interface for a WASM-based language runtime.
// Implement this interface to add support for new languages (Python, JavaScript, etc.)
type Language interface {
	// Name returns a unique identifier for this language (e.g., "python", "javascript").
	// Used as the cache key for compiled modules.
	Name() string

	// Module returns the WASM binary for the language interpreter. It may
	// read or download the binary, so it is only called on a cache miss.
	Module(ctx context.Context) ([]byte, error)

	// WrapCode prepares user code for execution by prepending any
	// language-specific boilerplate.
	WrapCode(code string) string

	// Args returns the command-line arguments to pass to the WASM module.
	// For Python: []string{"python", "-c", code}
	// For QuickJS: []string{"qjs", "--std", "-e", code}
	Args(wrappedCode string) []string
}
