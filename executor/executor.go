package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/playpen/output"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("executor closed")

// Result holds the output and metadata from code execution.
type Result struct {
	Output   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// ExitError reports a module that exited with a non-zero status.
type ExitError struct {
	Code   uint32
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Executor manages WASM runtimes and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	logger   *zap.Logger
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		logger:   cfg.logger,
	}

	for _, lang := range cfg.precompile {
		if err := e.Compile(ctx, lang); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", lang.Name(), err)
		}
	}

	return e, nil
}

// Compile loads and compiles the module for lang if it is not cached yet.
func (e *Executor) Compile(ctx context.Context, lang Language) error {
	_, err := e.getCompiled(ctx, lang)
	return err
}

// Compiled reports whether lang's module is already in the cache.
func (e *Executor) Compiled(lang Language) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.compiled[lang.Name()]
	return ok
}

// Run executes code in the specified language.
func (e *Executor) Run(ctx context.Context, lang Language, code string, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	compiled, err := e.getCompiled(ctx, lang)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	var stdout, stderr bytes.Buffer
	var stdoutW, stderrW io.Writer = &stdout, &stderr
	var outLines, errLines *output.LineWriter
	if cfg.stdout != nil {
		outLines = output.NewLineWriter(cfg.stdout)
		stdoutW = io.MultiWriter(&stdout, outLines)
	}
	if cfg.stderr != nil {
		errLines = output.NewLineWriter(cfg.stderr)
		stderrW = io.MultiWriter(&stderr, errLines)
	}

	wrappedCode := lang.WrapCode(code)
	args := lang.Args(wrappedCode)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(stdoutW).
		WithStderr(stderrW).
		WithStdin(bytes.NewReader(nil)).
		WithArgs(args...).
		WithName("")

	if len(cfg.mounts) > 0 {
		fsConfig := wazero.NewFSConfig()
		for _, m := range cfg.mounts {
			fsConfig = fsConfig.WithReadOnlyDirMount(m.HostPath, m.VirtualPath)
		}
		moduleConfig = moduleConfig.WithFSConfig(fsConfig)
	}
	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	e.logger.Debug("instantiate module",
		zap.String("language", lang.Name()),
		zap.Int("code_bytes", len(code)),
		zap.Int("mounts", len(cfg.mounts)))

	errCh := make(chan error, 1)
	go func() {
		mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		errCh <- err
	}()

	err = <-errCh

	if outLines != nil {
		outLines.Flush()
	}
	if errLines != nil {
		errLines.Flush()
	}

	result := Result{
		Output:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *sys.ExitError
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
		case ctx.Err() != nil:
			result.Error = fmt.Errorf("execution cancelled: %w", ctx.Err())
		case errors.As(err, &exitErr):
			if exitErr.ExitCode() != 0 {
				result.Error = &ExitError{Code: exitErr.ExitCode(), Stderr: result.Stderr}
			}
		default:
			result.Error = fmt.Errorf("execution failed: %w", err)
		}
	}

	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, lang Language) (wazero.CompiledModule, error) {
	name := lang.Name()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	binary, err := lang.Module(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s module: %w", name, err)
	}

	start := time.Now()
	compiled, err := e.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	e.logger.Info("compiled module",
		zap.String("language", name),
		zap.Int("bytes", len(binary)),
		zap.Duration("took", time.Since(start)))

	e.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "playpen", "wazero")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "playpen", "wazero")
	}
	return filepath.Join(os.TempDir(), "playpen-cache")
}
