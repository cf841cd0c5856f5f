// Package orchestrator sequences a run request: bring the language backend
// up once, load the optional libraries the code imports, execute, and report
// every step to an output console.
//
// The orchestrator is the error boundary of the playground. Run always
// returns a Result; initialization failures, library load failures, runtime
// errors and detector panics all become console messages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/playpen/detect"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	"go.uber.org/zap"
)

var ErrNoBackend = errors.New("no backend for language")

// Backend runs code for one language.
type Backend interface {
	// Name is the human-readable environment name, e.g. "Python".
	Name() string

	// Init prepares the environment. It is called once per successful
	// initialization, and again after a failure.
	Init(ctx context.Context, console *output.Console) error

	// Execute runs code, writing program output to console as it arrives.
	// Runtime errors in the submitted code should be returned as *ExecError.
	Execute(ctx context.Context, code string, console *output.Console) error
}

// LibraryLoader is implemented by backends that support optional libraries.
type LibraryLoader interface {
	LoadLibrary(ctx context.Context, lib detect.Library, console *output.Console) error
}

// ExecError is a runtime error raised by submitted code.
type ExecError struct {
	Message   string
	Traceback string
}

func (e *ExecError) Error() string {
	return e.Message
}

// Result is the outcome of a run.
type Result struct {
	Success  bool
	Err      error
	Duration time.Duration
}

// Detector finds the libraries referenced by source.
type Detector func(source string, registry detect.Registry) []detect.Library

type entry struct {
	backend Backend

	mu      sync.Mutex
	state   State
	attempt *initAttempt
	libs    map[string]LibraryState
}

type initAttempt struct {
	done chan struct{}
	err  error
}

// Orchestrator owns the registered backends and their state.
type Orchestrator struct {
	console  *output.Console
	registry detect.Registry
	detector Detector
	logger   *zap.Logger
	timeout  time.Duration
	clear    bool

	mu       sync.RWMutex
	backends map[string]*entry

	// execSem serializes everything past initialization, so library loads
	// and executions never overlap and the console never interleaves.
	execSem chan struct{}
}

// New returns an Orchestrator reporting to console.
func New(console *output.Console, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		console:  console,
		registry: detect.DefaultRegistry,
		detector: detect.Detect,
		logger:   zap.NewNop(),
		timeout:  DefaultTimeout,
		backends: make(map[string]*entry),
		execSem:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register installs the backend for a language ID, replacing any previous
// one and its state.
func (o *Orchestrator) Register(languageID string, b Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backends[languageID] = &entry{
		backend: b,
		libs:    make(map[string]LibraryState),
	}
}

// Supports reports whether a backend is registered for languageID.
func (o *Orchestrator) Supports(languageID string) bool {
	return o.entry(languageID) != nil
}

// State returns the backend state for languageID. Unregistered languages
// report Uninitialized.
func (o *Orchestrator) State(languageID string) State {
	e := o.entry(languageID)
	if e == nil {
		return Uninitialized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Libraries returns the loaded libraries of languageID in registry order.
func (o *Orchestrator) Libraries(languageID string) []string {
	e := o.entry(languageID)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var loaded []string
	for _, lib := range o.registry {
		if e.libs[lib.Name] == Loaded {
			loaded = append(loaded, lib.Name)
		}
	}
	return loaded
}

// LibraryState returns the state of one library for languageID.
func (o *Orchestrator) LibraryState(languageID, name string) LibraryState {
	e := o.entry(languageID)
	if e == nil {
		return NotLoaded
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.libs[name]
}

func (o *Orchestrator) entry(languageID string) *entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backends[languageID]
}

// Run executes doc on the orchestrator's console.
func (o *Orchestrator) Run(ctx context.Context, doc workspace.Document) Result {
	return o.RunTo(ctx, doc, o.console)
}

// RunTo executes doc, reporting to console instead of the default console.
// It never panics and always returns.
func (o *Orchestrator) RunTo(ctx context.Context, doc workspace.Document, console *output.Console) (res Result) {
	start := time.Now()
	log := o.logger.With(zap.String("document", doc.ID), zap.String("language", doc.Language))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			log.Error("run panicked", zap.Any("panic", r))
			console.Line("Program failed: " + err.Error())
			res = Result{Err: err}
		}
		res.Duration = time.Since(start)
		log.Info("run finished",
			zap.Bool("success", res.Success),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err))
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.timeout, fmt.Errorf("timeout after %v", o.timeout))
		defer cancel()
	}

	if o.clear {
		console.Clear()
	}
	console.Line(fmt.Sprintf("Running %s code...", doc.Language))

	e := o.entry(doc.Language)
	if e == nil {
		return o.fail(console, fmt.Errorf("%w %q", ErrNoBackend, doc.Language))
	}

	if err := o.ensureReady(ctx, e, console); err != nil {
		return o.fail(console, err)
	}

	select {
	case o.execSem <- struct{}{}:
	case <-ctx.Done():
		return o.fail(console, context.Cause(ctx))
	}
	defer func() { <-o.execSem }()

	if loader, ok := e.backend.(LibraryLoader); ok {
		if err := o.loadLibraries(ctx, e, loader, doc.Content, console); err != nil {
			return o.fail(console, err)
		}
	}

	name := e.backend.Name()
	console.Info(fmt.Sprintf("Executing %s code...", name))

	if err := e.backend.Execute(ctx, doc.Content, console); err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		console.Error("Error: " + err.Error())
		var execErr *ExecError
		if errors.As(err, &execErr) && execErr.Traceback != "" {
			console.Line("Traceback:")
			for _, line := range strings.Split(strings.TrimRight(execErr.Traceback, "\n"), "\n") {
				console.Line(line)
			}
		}
		return o.fail(console, err)
	}

	console.Line("Program finished with exit code 0")
	return Result{Success: true}
}

func (o *Orchestrator) fail(console *output.Console, err error) Result {
	console.Line("Program failed: " + err.Error())
	return Result{Err: err}
}

// ensureReady drives e to Ready. Concurrent callers share one in-flight
// initialization. It runs detached from any caller's cancellation, so a
// caller that gives up stops waiting without failing the others.
func (o *Orchestrator) ensureReady(ctx context.Context, e *entry, console *output.Console) error {
	name := e.backend.Name()

	e.mu.Lock()
	attempt := e.attempt
	switch e.state {
	case Ready:
		e.mu.Unlock()
		return nil
	case Initializing:
		e.mu.Unlock()
		console.Info(fmt.Sprintf("%s environment initialization is already in progress...", name))
	default:
		attempt = &initAttempt{done: make(chan struct{})}
		e.state = Initializing
		e.attempt = attempt
		e.mu.Unlock()

		console.Info(fmt.Sprintf("Initializing %s environment...", name))
		go o.initialize(context.WithoutCancel(ctx), e, attempt, console)
	}

	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (o *Orchestrator) initialize(ctx context.Context, e *entry, attempt *initAttempt, console *output.Console) {
	name := e.backend.Name()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.timeout, fmt.Errorf("timeout after %v", o.timeout))
		defer cancel()
	}
	o.logger.Info("initialize backend", zap.String("backend", name))

	err := safeInit(ctx, e.backend, console)
	if err != nil && ctx.Err() != nil {
		err = context.Cause(ctx)
	}

	e.mu.Lock()
	if err != nil {
		e.state = Failed
		attempt.err = fmt.Errorf("initialize %s: %w", name, err)
	} else {
		e.state = Ready
	}
	e.attempt = nil
	e.mu.Unlock()

	if err != nil {
		o.logger.Warn("backend initialization failed", zap.String("backend", name), zap.Error(err))
		console.Error(fmt.Sprintf("Failed to initialize %s environment: %v", name, err))
	} else {
		console.Success(fmt.Sprintf("%s environment is ready!", name))
	}
	close(attempt.done)
}

func safeInit(ctx context.Context, b Backend, console *output.Console) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Init(ctx, console)
}

// loadLibraries loads every detected library that is not loaded yet, in
// registry order. Callers hold execSem, so at most one load is in flight.
func (o *Orchestrator) loadLibraries(ctx context.Context, e *entry, loader LibraryLoader, code string, console *output.Console) error {
	libs, err := o.detect(code)
	if err != nil {
		console.Error("Error detecting libraries: " + err.Error())
		return nil
	}
	if len(libs) == 0 {
		return nil
	}

	names := make([]string, len(libs))
	for i, lib := range libs {
		names[i] = lib.Name
	}
	console.Info("Detected libraries: " + strings.Join(names, ", "))

	for _, lib := range libs {
		e.mu.Lock()
		if e.libs[lib.Name] == Loaded {
			e.mu.Unlock()
			continue
		}
		e.libs[lib.Name] = Loading
		e.mu.Unlock()

		console.Info(fmt.Sprintf("Loading %s... This may take a moment.", lib.DisplayName))
		err := loader.LoadLibrary(ctx, lib, console)

		e.mu.Lock()
		if err != nil {
			e.libs[lib.Name] = NotLoaded
		} else {
			e.libs[lib.Name] = Loaded
		}
		e.mu.Unlock()

		if err != nil {
			o.logger.Warn("library load failed", zap.String("library", lib.Name), zap.Error(err))
			console.Error(fmt.Sprintf("Failed to load %s: %v", lib.Name, err))
			return fmt.Errorf("load %s: %w", lib.Name, err)
		}
		console.Success(fmt.Sprintf("Successfully loaded %s", lib.DisplayName))
	}
	return nil
}

func (o *Orchestrator) detect(code string) (libs []detect.Library, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return o.detector(code, o.registry), nil
}
