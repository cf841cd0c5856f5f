package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caffeineduck/playpen/executor"
	"github.com/caffeineduck/playpen/internal/config"
	"github.com/caffeineduck/playpen/language/golang"
	"github.com/caffeineduck/playpen/language/javascript"
	"github.com/caffeineduck/playpen/language/python"
	"github.com/caffeineduck/playpen/language/python/pypi"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// errRunFailed is returned after a program failed; the console already
// shows why.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "playpen [file]",
	Short: "Multi-language code playground",
	Long: `playpen - a code playground for Python, JavaScript and Go.

Python and JavaScript run in WebAssembly interpreters with no access to
the host. Go runs through a simulated transpiler, or a real interpreter
with --go-backend yaegi. Python programs that import numpy, pandas,
matplotlib, scikit-learn or scipy get those libraries loaded first.

Run a file directly, or use the tui, repl and serve commands.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("lang", "l", "", "Language: "+strings.Join(workspace.DefaultLanguages.IDs(), ", ")+" (default: from file extension)")
	pf.Bool("no-cache", false, "Disable compilation cache")
	pf.String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	pf.String("python-wasm", "", "Path to the Python interpreter (RustPython WASM)")
	pf.String("packages", "", "Python packages directory")
	pf.String("index-url", "", "Python package index URL")
	pf.String("go-backend", "", "Go backend: stub or yaegi")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: console or json")

	addRunFlags(rootCmd)
}

// app holds what every command builds from configuration.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	exec      *executor.Executor
	installer *pypi.Installer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	execOpts := []executor.ExecutorOption{executor.WithLogger(logger)}
	if !noCache {
		execOpts = append(execOpts, executor.WithDiskCache())
	}
	if pages := executor.ParseMemoryLimit(cfg.Run.Memory); pages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(pages))
	}

	exec, err := executor.New(execOpts...)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		exec:   exec,
		installer: pypi.New(cfg.Python.PackagesDir,
			pypi.WithIndexURL(cfg.Python.IndexURL),
			pypi.WithLogger(logger.Named("pypi"))),
	}, nil
}

// orchestrator returns an orchestrator writing to console with a backend
// registered for every runnable language.
func (a *app) orchestrator(console *output.Console, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{
		orchestrator.WithTimeout(a.cfg.Run.Timeout),
		orchestrator.WithLogger(a.logger.Named("orchestrator")),
		orchestrator.WithRegistry(a.cfg.Python.Registry()),
	}, opts...)
	o := orchestrator.New(console, opts...)

	lang := python.New(python.Config{
		WasmPath:   a.cfg.Python.WasmPath,
		RuntimeURL: a.cfg.Python.RuntimeURL,
	})
	o.Register("python", python.NewBackend(a.exec, lang,
		python.WithInstaller(a.installer),
		python.WithLogger(a.logger.Named("python"))))
	o.Register("javascript", javascript.NewBackend(a.exec))

	if a.cfg.Go.Backend == "yaegi" {
		o.Register("go", golang.NewInterpBackend(a.logger.Named("go")))
	} else {
		o.Register("go", golang.NewStubBackend())
	}
	return o
}

func (a *app) Close() {
	a.exec.Close()
	a.logger.Sync()
}

// languageFor resolves --lang (accepting short aliases) or falls back to
// the file extension.
func languageFor(langFlag, filename string) (string, error) {
	switch strings.ToLower(langFlag) {
	case "":
	case "py":
		return "python", nil
	case "js", "node":
		return "javascript", nil
	case "golang":
		return "go", nil
	case "c++":
		return "cpp", nil
	default:
		id := strings.ToLower(langFlag)
		if _, ok := workspace.DefaultLanguages.Lookup(id); !ok {
			return "", fmt.Errorf("%w %q: use one of %s", workspace.ErrUnknownLanguage, langFlag,
				strings.Join(workspace.DefaultLanguages.IDs(), ", "))
		}
		return id, nil
	}

	if filename != "" {
		if lang, ok := workspace.DefaultLanguages.ForFile(filename); ok {
			return lang.ID, nil
		}
	}
	return "", fmt.Errorf("language required: use --lang %s", strings.Join(workspace.DefaultLanguages.IDs(), "|"))
}

// consoleFor returns a console over w, coloured only when w is a terminal.
func consoleFor(w io.Writer) *output.Console {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return output.NewConsole(output.NewWriter(w, output.WithTerminal()))
	}
	return output.NewConsole(output.NewWriter(w, output.WithoutColor()))
}
