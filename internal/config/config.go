// Package config loads playpen settings from a TOML file, PLAYPEN_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/playpen/detect"
	"github.com/caffeineduck/playpen/language/python"
	"github.com/caffeineduck/playpen/language/python/pypi"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Python PythonConfig `mapstructure:"python"`
	Go     GoConfig     `mapstructure:"go"`
	Run    RunConfig    `mapstructure:"run"`
	Layout LayoutConfig `mapstructure:"layout"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// PythonConfig locates the interpreter and the packages directory.
type PythonConfig struct {
	WasmPath    string `mapstructure:"wasm_path"`
	RuntimeURL  string `mapstructure:"runtime_url"`
	PackagesDir string `mapstructure:"packages_dir"`
	IndexURL    string `mapstructure:"index_url"`

	// Libraries, when set, replaces the default library registry.
	Libraries []LibraryConfig `mapstructure:"libraries"`
}

// LibraryConfig is one [[python.libraries]] entry.
type LibraryConfig struct {
	Name        string   `mapstructure:"name"`
	DisplayName string   `mapstructure:"display_name"`
	Alias       string   `mapstructure:"alias"`
	Aliases     []string `mapstructure:"aliases"`
	Submodule   string   `mapstructure:"submodule"`
}

// Registry returns the optional libraries the detector knows about. It is
// fixed for the life of the process.
func (c PythonConfig) Registry() detect.Registry {
	if len(c.Libraries) == 0 {
		return detect.DefaultRegistry
	}
	r := make(detect.Registry, 0, len(c.Libraries))
	for _, l := range c.Libraries {
		display := l.DisplayName
		if display == "" {
			display = l.Name
		}
		r = append(r, detect.Library{
			Name:        l.Name,
			DisplayName: display,
			Alias:       l.Alias,
			Aliases:     l.Aliases,
			Submodule:   l.Submodule,
		})
	}
	return r
}

// GoConfig selects the Go backend: "stub" or "yaegi".
type GoConfig struct {
	Backend string `mapstructure:"backend"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Memory  string        `mapstructure:"memory"`
}

// LayoutConfig holds the editor/console split of the terminal UI.
type LayoutConfig struct {
	Sizes    []float64 `mapstructure:"sizes"`
	MinSizes []float64 `mapstructure:"min_sizes"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig selects the logger. Level is a zap level name; Format is
// "console" or "json".
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"timeout":     "run.timeout",
	"memory":      "run.memory",
	"port":        "server.port",
	"python-wasm": "python.wasm_path",
	"packages":    "python.packages_dir",
	"index-url":   "python.index_url",
	"go-backend":  "go.backend",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "playpen")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "playpen")
}

// Path returns the configuration file location: $PLAYPEN_CONFIG or
// ~/.config/playpen/config.toml.
func Path() string {
	if p := os.Getenv("PLAYPEN_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "playpen", "config.toml")
}

func setDefaults(v *viper.Viper) {
	data := dataDir()
	v.SetDefault("python.wasm_path", filepath.Join(data, "python", "rustpython.wasm"))
	v.SetDefault("python.runtime_url", python.DefaultRuntimeURL)
	v.SetDefault("python.packages_dir", filepath.Join(data, "python", "packages"))
	v.SetDefault("python.index_url", pypi.DefaultIndexURL)
	v.SetDefault("go.backend", "stub")
	v.SetDefault("run.timeout", 30*time.Second)
	v.SetDefault("run.memory", "256mb")
	v.SetDefault("layout.sizes", []float64{60, 40})
	v.SetDefault("layout.min_sizes", []float64{30, 30})
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. Env var overrides use prefix PLAYPEN_. Flags in
// flags that have been set override both; flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("PLAYPEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.Go.Backend {
	case "stub", "yaegi":
	default:
		return fmt.Errorf("go.backend must be \"stub\" or \"yaegi\", got %q", c.Go.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be \"console\" or \"json\", got %q", c.Log.Format)
	}
	if c.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative")
	}
	seen := make(map[string]bool)
	for i, l := range c.Python.Libraries {
		name := strings.ToLower(l.Name)
		if name == "" {
			return fmt.Errorf("python.libraries[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("python.libraries: duplicate library %q", l.Name)
		}
		seen[name] = true
	}
	return nil
}

// SaveLayout writes the layout preferences to the configuration file,
// keeping any other settings in it.
func SaveLayout(c Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	v.Set("layout.sizes", c.Layout.Sizes)
	v.Set("layout.min_sizes", c.Layout.MinSizes)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
