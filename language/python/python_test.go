package python

import (
	"context"
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/caffeineduck/playpen/detect"
	"github.com/caffeineduck/playpen/executor"
	"github.com/caffeineduck/playpen/language/python/pypi"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/stretchr/testify/require"
)

func TestModuleFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "python.wasm")
	require.NoError(t, os.WriteFile(path, []byte("\x00asm"), 0644))

	data, err := New(Config{WasmPath: path}).Module(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("\x00asm"), data)
}

func TestModuleDownloadsWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\x00asm-remote"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache", "python.wasm")
	lang := New(Config{WasmPath: path, RuntimeURL: srv.URL, Client: srv.Client()})

	data, err := lang.Module(context.Background())
	require.NoError(t, err)
	require.Equal(t, "\x00asm-remote", string(data))
	require.FileExists(t, path)
}

func TestModuleErrors(t *testing.T) {
	_, err := New(Config{}).Module(context.Background())
	require.ErrorIs(t, err, ErrNoRuntime)

	_, err = New(Config{WasmPath: filepath.Join(t.TempDir(), "absent.wasm")}).Module(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestArgs(t *testing.T) {
	lang := New(Config{})
	require.Equal(t, "python", lang.Name())
	require.Equal(t, `print("hi")`, lang.WrapCode(`print("hi")`))
	require.Equal(t, []string{"python", "-c", "x"}, lang.Args("x"))
}

func TestModuleName(t *testing.T) {
	sklearn, _ := detect.DefaultRegistry.Lookup("scikit-learn")
	numpy, _ := detect.DefaultRegistry.Lookup("numpy")
	require.Equal(t, "sklearn", ModuleName(sklearn))
	require.Equal(t, "numpy", ModuleName(numpy))
}

func TestParseError(t *testing.T) {
	stderr := "Traceback (most recent call last):\n  File \"<string>\", line 1, in <module>\nZeroDivisionError: division by zero\n"
	err := parseError(stderr, errors.New("exit status 1"))

	var execErr *orchestrator.ExecError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, "ZeroDivisionError: division by zero", execErr.Message)
	require.Contains(t, execErr.Traceback, `File "<string>", line 1`)

	err = parseError("SyntaxError: invalid syntax\n", errors.New("exit status 1"))
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, "SyntaxError: invalid syntax", execErr.Message)
	require.Empty(t, execErr.Traceback)

	err = parseError("", errors.New("exit status 2"))
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, "exit status 2", execErr.Message)
}

func TestLoadLibraryAlreadyInstalled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "matplotlib"), 0755))

	b := NewBackend(nil, New(Config{}), WithInstaller(pypi.New(dir, pypi.WithIndexURL("http://127.0.0.1:1"))))
	buf := output.NewBuffer()
	lib, _ := detect.DefaultRegistry.Lookup("matplotlib")

	require.NoError(t, b.LoadLibrary(context.Background(), lib, output.NewConsole(buf)))
	require.Contains(t, buf.Plain(), "Matplotlib configured for headless rendering")
	require.Equal(t, "Agg", b.env["MPLBACKEND"])
}

func TestLoadLibraryInstallsPureWheel(t *testing.T) {
	var wheel bytes.Buffer
	zw := zip.NewWriter(&wheel)
	for name, content := range map[string]string{
		"tabulate.py":                       "def tabulate(rows, headers=()):\n    return ''\n",
		"tabulate-0.9.0.dist-info/METADATA": "Name: tabulate\n",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/tabulate/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"info": map[string]string{"name": "tabulate", "version": "0.9.0"},
			"urls": []map[string]string{{
				"packagetype": "bdist_wheel",
				"filename":    "tabulate-0.9.0-py3-none-any.whl",
				"url":         srv.URL + "/files/tabulate.whl",
			}},
		})
	})
	mux.HandleFunc("/files/tabulate.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write(wheel.Bytes())
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	installer := pypi.New(dir, pypi.WithIndexURL(srv.URL))
	b := NewBackend(nil, New(Config{}), WithInstaller(installer))
	lib, ok := detect.DefaultRegistry.Lookup("tabulate")
	require.True(t, ok)

	buf := output.NewBuffer()
	require.NoError(t, b.LoadLibrary(context.Background(), lib, output.NewConsole(buf)))
	require.True(t, installer.Installed("tabulate"))
	require.FileExists(t, filepath.Join(dir, "tabulate.py"))
	require.Contains(t, buf.Plain(), "   Downloading tabulate-0.9.0...")

	// A second load finds the module and does not hit the index again.
	srv.Close()
	buf.Clear()
	require.NoError(t, b.LoadLibrary(context.Background(), lib, output.NewConsole(buf)))
	require.Empty(t, buf.Plain())
}

func TestLoadLibraryBlocked(t *testing.T) {
	b := NewBackend(nil, New(Config{}), WithInstaller(pypi.New(t.TempDir())))
	lib, _ := detect.DefaultRegistry.Lookup("numpy")

	err := b.LoadLibrary(context.Background(), lib, output.NewConsole(output.NewBuffer()))
	var blocked *pypi.BlockedError
	require.True(t, errors.As(err, &blocked))
}

func TestLoadLibraryWithoutInstaller(t *testing.T) {
	b := NewBackend(nil, New(Config{}))
	lib, _ := detect.DefaultRegistry.Lookup("scipy")
	require.Error(t, b.LoadLibrary(context.Background(), lib, output.NewConsole(output.NewBuffer())))
}

// The tests below run the real interpreter and need PLAYPEN_PYTHON_WASM to
// point at a RustPython WASI build.

func integrationBackend(t *testing.T) *Backend {
	t.Helper()
	path := os.Getenv("PLAYPEN_PYTHON_WASM")
	if path == "" {
		t.Skip("PLAYPEN_PYTHON_WASM not set")
	}
	return NewBackend(executor.Shared(t), New(Config{WasmPath: path}), WithInstaller(pypi.New(t.TempDir())))
}

func TestExecuteStreamsOutput(t *testing.T) {
	b := integrationBackend(t)
	buf := output.NewBuffer()
	console := output.NewConsole(buf)

	require.NoError(t, b.Init(context.Background(), console))
	require.NoError(t, b.Execute(context.Background(), "print('hi')\nprint(sum(range(10)))", console))
	require.Equal(t, []string{"hi", "45"}, buf.Plain()[len(buf.Plain())-2:])
}

func TestExecuteRaises(t *testing.T) {
	b := integrationBackend(t)
	console := output.NewConsole(output.NewBuffer())

	require.NoError(t, b.Init(context.Background(), console))
	err := b.Execute(context.Background(), "1/0", console)

	var execErr *orchestrator.ExecError
	require.True(t, errors.As(err, &execErr))
	require.Contains(t, execErr.Message, "ZeroDivisionError")
	require.NotEmpty(t, execErr.Traceback)
}

func TestExecuteImportsInstalledPackage(t *testing.T) {
	b := integrationBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(b.installer.Dir(), "greeting.py"), []byte("WORD = 'hello'\n"), 0644))

	buf := output.NewBuffer()
	console := output.NewConsole(buf)
	require.NoError(t, b.Init(context.Background(), console))
	require.NoError(t, b.Execute(context.Background(), "import greeting\nprint(greeting.WORD)", console))
	require.Contains(t, buf.Plain(), "hello")
}
