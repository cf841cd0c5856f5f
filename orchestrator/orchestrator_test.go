package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caffeineduck/playpen/detect"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	name    string
	initErr error
	gate    chan struct{} // Init blocks on it when non-nil
	inits   atomic.Int32
	failLib map[string]error

	mu     sync.Mutex
	loaded []string
	execFn func(code string, console *output.Console) error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Init(ctx context.Context, console *output.Console) error {
	f.inits.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.initErr
}

func (f *fakeBackend) Execute(ctx context.Context, code string, console *output.Console) error {
	if f.execFn != nil {
		return f.execFn(code, console)
	}
	return nil
}

func (f *fakeBackend) LoadLibrary(ctx context.Context, lib detect.Library, console *output.Console) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLib[lib.Name]; err != nil {
		return err
	}
	f.loaded = append(f.loaded, lib.Name)
	return nil
}

func (f *fakeBackend) loadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

// plainBackend does not load libraries.
type plainBackend struct {
	name string
	out  []string
}

func (p *plainBackend) Name() string                                { return p.name }
func (p *plainBackend) Init(context.Context, *output.Console) error { return nil }
func (p *plainBackend) Execute(_ context.Context, _ string, c *output.Console) error {
	for _, l := range p.out {
		c.Line(l)
	}
	return nil
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *output.Buffer) {
	t.Helper()
	buf := output.NewBuffer()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(output.NewConsole(buf), opts...), buf
}

func doc(lang, content string) workspace.Document {
	return workspace.Document{ID: "doc-1", Name: "main", Language: lang, Content: content}
}

func indexOf(lines []string, substr string) int {
	for i, l := range lines {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

func TestRunPythonEndToEnd(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python", execFn: func(code string, c *output.Console) error {
		c.Line("hi")
		return nil
	}}
	o.Register("python", backend)

	res := o.Run(context.Background(), doc("python", `print("hi")`))
	require.True(t, res.Success)
	require.NoError(t, res.Err)

	lines := buf.Plain()
	initIdx := indexOf(lines, "Initializing Python environment...")
	execIdx := indexOf(lines, "Executing Python code...")
	require.GreaterOrEqual(t, initIdx, 0)
	require.Greater(t, execIdx, initIdx)
	require.Equal(t, "hi", lines[execIdx+1])
	require.Equal(t, "Program finished with exit code 0", lines[len(lines)-1])
	require.Equal(t, -1, indexOf(lines, "Error"))
	require.Equal(t, Ready, o.State("python"))

	// The second run skips initialization.
	buf.Clear()
	res = o.Run(context.Background(), doc("python", `print("hi")`))
	require.True(t, res.Success)
	require.Equal(t, -1, indexOf(buf.Plain(), "Initializing"))
	require.Equal(t, int32(1), backend.inits.Load())
}

func TestConcurrentRunsInitializeOnce(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python", gate: make(chan struct{})}
	o.Register("python", backend)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = o.Run(context.Background(), doc("python", "x = 1"))
	}()

	require.Eventually(t, func() bool { return o.State("python") == Initializing }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = o.Run(context.Background(), doc("python", "x = 2"))
	}()

	require.Eventually(t, func() bool {
		return indexOf(buf.Plain(), "initialization is already in progress") >= 0
	}, time.Second, time.Millisecond)

	close(backend.gate)
	wg.Wait()

	require.Equal(t, int32(1), backend.inits.Load())
	require.Equal(t, Ready, o.State("python"))
	require.True(t, results[0].Success)
	require.True(t, results[1].Success)
	require.Contains(t, buf.Plain(), "Python environment initialization is already in progress...")
}

func TestCancelledRunDoesNotFailSharedInit(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python", gate: make(chan struct{})}
	o.Register("python", backend)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = o.Run(ctxA, doc("python", "x = 1"))
	}()
	require.Eventually(t, func() bool { return o.State("python") == Initializing }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = o.Run(context.Background(), doc("python", "x = 2"))
	}()
	require.Eventually(t, func() bool {
		return indexOf(buf.Plain(), "initialization is already in progress") >= 0
	}, time.Second, time.Millisecond)

	cancelA()
	require.Eventually(t, func() bool {
		return indexOf(buf.Plain(), "Program failed: context canceled") >= 0
	}, time.Second, time.Millisecond)
	require.Equal(t, Initializing, o.State("python"))

	close(backend.gate)
	wg.Wait()

	require.ErrorIs(t, results[0].Err, context.Canceled)
	require.True(t, results[1].Success)
	require.NoError(t, results[1].Err)
	require.Equal(t, Ready, o.State("python"))
	require.Equal(t, int32(1), backend.inits.Load())
}

func TestInitFailureIsRetried(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python", initErr: errors.New("wasm missing")}
	o.Register("python", backend)

	res := o.Run(context.Background(), doc("python", "x = 1"))
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "wasm missing")
	require.Equal(t, Failed, o.State("python"))

	lines := buf.Plain()
	require.Contains(t, lines, "Failed to initialize Python environment: wasm missing")
	require.Equal(t, -1, indexOf(lines, "Executing"))
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "Program failed: "))

	backend.initErr = nil
	res = o.Run(context.Background(), doc("python", "x = 1"))
	require.True(t, res.Success)
	require.Equal(t, Ready, o.State("python"))
	require.Equal(t, int32(2), backend.inits.Load())
}

func TestInitPanicBecomesFailure(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.Register("python", &panickyBackend{})

	res := o.Run(context.Background(), doc("python", "x = 1"))
	require.False(t, res.Success)
	require.Equal(t, Failed, o.State("python"))
	require.GreaterOrEqual(t, indexOf(buf.Plain(), "Failed to initialize Panicky environment: panic: boom"), 0)
}

type panickyBackend struct{}

func (panickyBackend) Name() string                                           { return "Panicky" }
func (panickyBackend) Init(context.Context, *output.Console) error            { panic("boom") }
func (panickyBackend) Execute(context.Context, string, *output.Console) error { return nil }

func TestLibraryLoadOrderAndFailure(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python", failLib: map[string]error{"pandas": errors.New("no wheel")}}
	o.Register("python", backend)

	// numpy loads first and stays loaded.
	res := o.Run(context.Background(), doc("python", "import numpy as np"))
	require.True(t, res.Success)
	require.Equal(t, []string{"numpy"}, o.Libraries("python"))

	buf.Clear()
	code := "import numpy as np\nimport pandas as pd\nimport matplotlib.pyplot as plt"
	res = o.Run(context.Background(), doc("python", code))
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "load pandas")

	lines := buf.Plain()
	require.Contains(t, lines, "Detected libraries: numpy, pandas, matplotlib")
	require.Contains(t, lines, "Failed to load pandas: no wheel")
	require.Equal(t, -1, indexOf(lines, "Executing"))

	// numpy is not reloaded, matplotlib is never attempted.
	require.Equal(t, []string{"numpy"}, backend.loadCalls())
	require.Equal(t, []string{"numpy"}, o.Libraries("python"))
	require.Equal(t, Loaded, o.LibraryState("python", "numpy"))
	require.Equal(t, NotLoaded, o.LibraryState("python", "pandas"))
	require.Equal(t, NotLoaded, o.LibraryState("python", "matplotlib"))
}

func TestLibraryLoadedOnce(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	backend := &fakeBackend{name: "Python"}
	o.Register("python", backend)

	for range 3 {
		res := o.Run(context.Background(), doc("python", "import scipy\nfrom sklearn import svm"))
		require.True(t, res.Success)
	}
	require.Equal(t, []string{"scikit-learn", "scipy"}, backend.loadCalls())
	require.Equal(t, []string{"scikit-learn", "scipy"}, o.Libraries("python"))
}

func TestDetectorPanicDoesNotBlockRun(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithDetector(func(string, detect.Registry) []detect.Library {
		panic("bad pattern")
	}))
	o.Register("python", &fakeBackend{name: "Python"})

	res := o.Run(context.Background(), doc("python", "import numpy"))
	require.True(t, res.Success)

	lines := buf.Plain()
	detectIdx := indexOf(lines, "Error detecting libraries: bad pattern")
	require.GreaterOrEqual(t, detectIdx, 0)
	require.Greater(t, indexOf(lines, "Executing Python code..."), detectIdx)
}

func TestBackendWithoutLibrariesSkipsDetection(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.Register("go", &plainBackend{name: "Go", out: []string{"Hello"}})

	res := o.Run(context.Background(), doc("go", "import numpy"))
	require.True(t, res.Success)
	require.Equal(t, -1, indexOf(buf.Plain(), "Detected"))
	require.Contains(t, buf.Plain(), "Hello")
}

func TestExecErrorWithTraceback(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.Register("python", &fakeBackend{name: "Python", execFn: func(string, *output.Console) error {
		return &ExecError{
			Message:   "ZeroDivisionError: division by zero",
			Traceback: "Traceback (most recent call last):\n  File \"<string>\", line 1\nZeroDivisionError: division by zero\n",
		}
	}})

	res := o.Run(context.Background(), doc("python", "1/0"))
	require.False(t, res.Success)

	var execErr *ExecError
	require.True(t, errors.As(res.Err, &execErr))

	lines := buf.Plain()
	errIdx := indexOf(lines, "Error: ZeroDivisionError: division by zero")
	require.GreaterOrEqual(t, errIdx, 0)
	require.Equal(t, "Traceback:", lines[errIdx+1])
	require.Equal(t, "Program failed: ZeroDivisionError: division by zero", lines[len(lines)-1])

	// Error lines are red.
	require.Equal(t, output.Colorize(output.Error, "Error: ZeroDivisionError: division by zero"), buf.Lines()[errIdx])
}

func TestExecutePanicIsRecovered(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.Register("python", &fakeBackend{name: "Python", execFn: func(string, *output.Console) error {
		panic("interpreter crashed")
	}})

	res := o.Run(context.Background(), doc("python", "x"))
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "interpreter crashed")
	require.Contains(t, buf.Plain(), "Program failed: internal error: interpreter crashed")

	// The orchestrator is still usable afterwards.
	o.Register("go", &plainBackend{name: "Go"})
	require.True(t, o.Run(context.Background(), doc("go", "")).Success)
}

func TestNoBackend(t *testing.T) {
	o, buf := newTestOrchestrator(t)

	res := o.Run(context.Background(), doc("cpp", "int main() {}"))
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrNoBackend)
	require.Equal(t, []string{"Running cpp code...", `Program failed: no backend for language "cpp"`}, buf.Plain())
	require.False(t, o.Supports("cpp"))
}

func TestRunTimeout(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithTimeout(50*time.Millisecond))
	o.Register("python", &blockingBackend{})

	res := o.Run(context.Background(), doc("python", "while True: pass"))
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "timeout after 50ms")
	require.Contains(t, buf.Plain(), "Program failed: timeout after 50ms")
}

func TestCallerDeadlineIsReportedAsIs(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithTimeout(0))
	o.Register("python", &blockingBackend{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := o.Run(ctx, doc("python", "while True: pass"))
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Equal(t, -1, indexOf(buf.Plain(), "timeout after"))
}

func TestQueuedRunGivesUpOnDeadline(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithTimeout(0))
	release := make(chan struct{})
	var executed atomic.Int32
	o.Register("python", &fakeBackend{name: "Python", execFn: func(code string, c *output.Console) error {
		executed.Add(1)
		if code == "hold" {
			<-release
		}
		return nil
	}})

	done := make(chan Result)
	go func() { done <- o.Run(context.Background(), doc("python", "hold")) }()
	require.Eventually(t, func() bool { return executed.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := o.Run(ctx, doc("python", "queued"))
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Equal(t, int32(1), executed.Load())

	close(release)
	require.True(t, (<-done).Success)
	require.Contains(t, buf.Plain(), "Program failed: context deadline exceeded")
}

type blockingBackend struct{}

func (blockingBackend) Name() string                                { return "Python" }
func (blockingBackend) Init(context.Context, *output.Console) error { return nil }
func (blockingBackend) Execute(ctx context.Context, _ string, _ *output.Console) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExecutionIsSerialized(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithTimeout(0))
	o.Register("python", &fakeBackend{name: "Python", execFn: func(code string, c *output.Console) error {
		for i := range 20 {
			c.Line(fmt.Sprintf("%s-%d", code, i))
			time.Sleep(time.Microsecond)
		}
		return nil
	}})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Run(context.Background(), doc("python", id))
		}()
	}
	wg.Wait()

	// Each run's output must be contiguous.
	var runs []string
	for _, l := range buf.Plain() {
		if len(l) > 2 && l[1] == '-' {
			if len(runs) == 0 || runs[len(runs)-1] != l[:1] {
				runs = append(runs, l[:1])
			}
		}
	}
	require.Len(t, runs, 3)
}

func TestClearOnRun(t *testing.T) {
	o, buf := newTestOrchestrator(t, WithClearOnRun())
	o.Register("go", &plainBackend{name: "Go", out: []string{"out"}})

	o.Run(context.Background(), doc("go", ""))
	o.Run(context.Background(), doc("go", ""))
	require.Equal(t, "Running go code...", buf.Plain()[0])
	require.Equal(t, 1, strings.Count(strings.Join(buf.Plain(), "\n"), "Running go code..."))
}

func TestRunToUsesGivenConsole(t *testing.T) {
	o, shared := newTestOrchestrator(t)
	o.Register("go", &plainBackend{name: "Go", out: []string{"private"}})

	mine := output.NewBuffer()
	res := o.RunTo(context.Background(), doc("go", ""), output.NewConsole(mine))
	require.True(t, res.Success)
	require.Contains(t, mine.Plain(), "private")
	require.Zero(t, shared.Len())
}

func TestStateStrings(t *testing.T) {
	require.Equal(t, "uninitialized", Uninitialized.String())
	require.Equal(t, "initializing", Initializing.String())
	require.Equal(t, "ready", Ready.String())
	require.Equal(t, "failed", Failed.String())
	require.Equal(t, "not-loaded", NotLoaded.String())
	require.Equal(t, "loading", Loading.String())
	require.Equal(t, "loaded", Loaded.String())
}
