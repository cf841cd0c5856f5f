// Package executor provides a WebAssembly-based code execution engine
// for running Python and JavaScript interpreters in a WASI sandbox.
//
// # Overview
//
// The executor manages WASM module compilation, caching, and execution.
// Each Run instantiates a fresh module, so no state survives between runs.
// Modules see no host filesystem unless directories are mounted, and no
// network at all.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, python.New(python.Config{}), `print("hello")`)
//	fmt.Println(result.Output)
//
// # Streaming
//
// Output can be delivered line by line while the module is still running:
//
//	exec.Run(ctx, lang, code,
//	    executor.WithStdout(func(line string) { fmt.Println(line) }),
//	    executor.WithStderr(func(line string) { fmt.Fprintln(os.Stderr, line) }))
//
// # Compilation
//
// Compiling an interpreter takes seconds. Compile does it ahead of the
// first run, WithDiskCache persists the result across processes, and
// WithPrecompile compiles at construction time.
package executor
