package executor

import (
	"sync"
	"testing"
)

var shared struct {
	once sync.Once
	exec *Executor
	err  error
}

// Shared returns one executor per test binary so each interpreter is
// compiled once rather than once per test. Callers must not close it.
func Shared(tb testing.TB) *Executor {
	tb.Helper()
	shared.once.Do(func() {
		shared.exec, shared.err = New()
	})
	if shared.err != nil {
		tb.Fatalf("create executor: %v", shared.err)
	}
	return shared.exec
}
