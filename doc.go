// Package playpen is a multi-language code playground.
//
// # Overview
//
// A [workspace.Workspace] holds the documents being edited. An
// [orchestrator.Orchestrator] runs a document on the backend registered
// for its language, bringing the backend up on first use and loading any
// Python libraries the document imports. Everything a run prints goes to
// an [output.Console].
//
// Python and JavaScript run inside WebAssembly interpreters through the
// [executor] package. Go runs through a simulated transpiler, or through
// a real interpreter.
//
// # Basic Usage
//
//	exec, _ := executor.New()
//	defer exec.Close()
//
//	orch := orchestrator.New(output.NewConsole(output.NewWriter(os.Stdout)))
//	orch.Register("javascript", javascript.NewBackend(exec))
//	orch.Register("go", golang.NewStubBackend())
//
//	ws := workspace.New(nil)
//	doc, _ := ws.Create("javascript")
//	res := orch.Run(ctx, doc)
//
// The cmd/playpen command wraps the same pieces in a CLI, a terminal UI
// and an HTTP API. See the [layout] package for the resizable pane logic
// the terminal UI uses, and [detect] for import-based library detection.
package playpen
