// Package pypi installs pure-Python wheels from a PyPI-compatible index into
// a flat packages directory that the sandboxed interpreter imports from.
//
// No pip is required. Only pure Python wheels are supported; packages with
// C extensions cannot run inside WASM and are rejected.
package pypi

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caffeineduck/playpen/internal/fetch"
	"go.uber.org/zap"
)

// DefaultIndexURL is the PyPI JSON API root.
const DefaultIndexURL = "https://pypi.org/pypi"

var (
	ErrNotFound   = errors.New("package not found on index")
	ErrNoWheel    = errors.New("no compatible wheel found (pure Python wheel required)")
	ErrCExtension = errors.New("package contains C extensions")
)

// BlockedError reports a package known not to work under WASI.
type BlockedError struct {
	Name   string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s is not supported in WASM (%s)", e.Name, e.Reason)
}

// Packages that won't work in WASM (require C extensions, sockets, etc.)
var blockedPackages = map[string]string{
	"numpy":         "requires C extensions",
	"pandas":        "requires C extensions (numpy)",
	"scipy":         "requires C extensions",
	"scikit-learn":  "requires C extensions",
	"sklearn":       "requires C extensions",
	"matplotlib":    "requires C extensions",
	"tensorflow":    "requires C extensions",
	"torch":         "requires C extensions",
	"pillow":        "requires C extensions",
	"opencv-python": "requires C extensions",
	"lxml":          "requires C extensions",
	"cryptography":  "requires C extensions",
	"requests":      "uses sockets",
	"httpx":         "uses sockets",
	"urllib3":       "uses sockets",
	"aiohttp":       "uses async sockets",
	"flask":         "requires sockets",
	"django":        "requires sockets",
	"fastapi":       "requires sockets",
}

// Blocked returns the reason name cannot be installed, if it is known to be
// incompatible.
func Blocked(name string) (string, bool) {
	reason, ok := blockedPackages[strings.ToLower(name)]
	return reason, ok
}

type release struct {
	PackageType string `json:"packagetype"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
}

type projectResponse struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	Urls []release `json:"urls"`
}

// Installer manages a packages directory.
type Installer struct {
	dir      string
	indexURL string
	client   *http.Client
	logger   *zap.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithIndexURL sets the JSON API root, e.g. a private mirror.
func WithIndexURL(url string) Option {
	return func(i *Installer) {
		if url != "" {
			i.indexURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets the client used for index and wheel requests.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) {
		if c != nil {
			i.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// New returns an Installer writing into dir.
func New(dir string, opts ...Option) *Installer {
	i := &Installer{
		dir:      dir,
		indexURL: DefaultIndexURL,
		client:   http.DefaultClient,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the packages directory.
func (i *Installer) Dir() string {
	return i.dir
}

// ParseSpec splits a requirement like "attrs==23.1" into name and pinned
// version. Range operators are accepted but only "==" pins a version.
func ParseSpec(spec string) (name, version string) {
	spec = strings.TrimSpace(spec)
	if idx := strings.Index(spec, "=="); idx != -1 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+2:])
	}
	for _, op := range []string{">=", "<=", "~=", "!=", ">", "<"} {
		if idx := strings.Index(spec, op); idx != -1 {
			return strings.TrimSpace(spec[:idx]), ""
		}
	}
	return spec, ""
}

// Installed reports whether module is importable from the packages
// directory, as a package directory or a single-file module.
func (i *Installer) Installed(module string) bool {
	if _, err := os.Stat(filepath.Join(i.dir, module)); err == nil {
		return true
	}
	_, err := os.Stat(filepath.Join(i.dir, module+".py"))
	return err == nil
}

// Install downloads and extracts the wheel for spec. progress, if non-nil,
// receives human-readable status lines.
func (i *Installer) Install(ctx context.Context, spec string, progress func(string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	name, version := ParseSpec(spec)
	if reason, blocked := Blocked(name); blocked {
		return &BlockedError{Name: name, Reason: reason}
	}

	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}

	url := fmt.Sprintf("%s/%s/json", i.indexURL, name)
	if version != "" {
		url = fmt.Sprintf("%s/%s/%s/json", i.indexURL, name, version)
	}
	body, err := fetch.Bytes(ctx, i.client, url)
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("fetch package info: %w", err)
	}

	var project projectResponse
	if err := json.Unmarshal(body, &project); err != nil {
		return fmt.Errorf("parse index response: %w", err)
	}

	wheelURL := findWheel(project.Urls)
	if wheelURL == "" {
		return ErrNoWheel
	}

	progress(fmt.Sprintf("Downloading %s-%s...", project.Info.Name, project.Info.Version))
	i.logger.Info("download wheel",
		zap.String("package", project.Info.Name),
		zap.String("version", project.Info.Version),
		zap.String("url", wheelURL))

	tmpDir, err := os.MkdirTemp("", "playpen-wheel-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wheelPath := filepath.Join(tmpDir, "pkg.whl")
	if err := fetch.File(ctx, i.client, wheelURL, wheelPath); err != nil {
		return fmt.Errorf("download wheel: %w", err)
	}

	progress("Extracting...")
	if err := extractWheel(wheelPath, i.dir); err != nil {
		return fmt.Errorf("extract wheel: %w", err)
	}
	return nil
}

// List returns the installed top-level packages, sorted.
func (i *Installer) List() ([]string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		n := entry.Name()
		switch {
		case strings.HasPrefix(n, "__") || strings.HasPrefix(n, "."):
		case entry.IsDir():
			names = append(names, n)
		case strings.HasSuffix(n, ".py"):
			names = append(names, strings.TrimSuffix(n, ".py"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes module and any leftover metadata for it.
func (i *Installer) Remove(module string) error {
	if module == "" || strings.ContainsAny(module, `/\`) || module == "." || module == ".." {
		return fmt.Errorf("invalid package name %q", module)
	}
	if err := os.RemoveAll(filepath.Join(i.dir, module)); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(i.dir, module+".py")); err != nil && !os.IsNotExist(err) {
		return err
	}

	entries, _ := os.ReadDir(i.dir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), module) && strings.HasSuffix(entry.Name(), ".dist-info") {
			os.RemoveAll(filepath.Join(i.dir, entry.Name()))
		}
	}
	return nil
}

func findWheel(urls []release) string {
	for _, u := range urls {
		if u.PackageType != "bdist_wheel" {
			continue
		}

		filename := strings.ToLower(u.Filename)
		if strings.Contains(filename, "-py3-none-any") || strings.Contains(filename, "-py2.py3-none-any") {
			return u.URL
		}
	}
	return ""
}

func extractWheel(wheelPath, destDir string) error {
	r, err := zip.OpenReader(wheelPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".so") || strings.HasSuffix(name, ".pyd") || strings.HasSuffix(name, ".dylib") {
			return fmt.Errorf("%w (%s)", ErrCExtension, filepath.Base(f.Name))
		}
	}

	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		if strings.Contains(f.Name, ".dist-info/") {
			continue
		}

		destPath := filepath.Join(root, f.Name)
		if !strings.HasPrefix(destPath, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in wheel: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		if err := extractFile(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
