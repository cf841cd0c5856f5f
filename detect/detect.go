// Package detect finds optional Python libraries referenced by import
// statements.
//
// Detection is a syntactic heuristic over the source text. It understands
//
//	import numpy
//	import numpy as np, pandas
//	import matplotlib.pyplot as plt
//	from sklearn.model_selection import train_test_split
//
// and several statements on one line separated by semicolons. Conditional,
// dynamic (importlib) and re-exported imports are not recognised.
package detect

import (
	"regexp"
	"strings"
)

// Library describes an optional library that must be loaded before code
// importing it can run.
type Library struct {
	Name        string   // canonical package name, e.g. "scikit-learn"
	DisplayName string   // e.g. "Scikit-learn"
	Alias       string   // conventional import alias, e.g. "sklearn"
	Aliases     []string // alternate names accepted as module or alias
	Submodule   string   // commonly imported submodule, e.g. "pyplot"
}

// ImportPath returns the dotted path users typically import.
func (l Library) ImportPath() string {
	if l.Submodule == "" {
		return l.Name
	}
	return l.Name + "." + l.Submodule
}

func (l Library) names() []string {
	names := make([]string, 0, len(l.Aliases)+2)
	names = append(names, l.Name)
	if l.Alias != "" {
		names = append(names, l.Alias)
	}
	return append(names, l.Aliases...)
}

// Registry is an ordered, immutable list of known libraries.
type Registry []Library

// DefaultRegistry lists the libraries known to the playground: the
// scientific Python stack, then pure-Python packages that install from a
// wheel and run inside the WASM interpreter.
var DefaultRegistry = Registry{
	{Name: "numpy", DisplayName: "NumPy", Alias: "np", Aliases: []string{"np"}},
	{Name: "pandas", DisplayName: "Pandas", Alias: "pd", Aliases: []string{"pd"}},
	{Name: "matplotlib", DisplayName: "Matplotlib", Alias: "plt", Aliases: []string{"plt"}, Submodule: "pyplot"},
	{Name: "scikit-learn", DisplayName: "Scikit-learn", Alias: "sklearn", Aliases: []string{"sklearn"}},
	{Name: "scipy", DisplayName: "SciPy", Alias: "sp", Aliases: []string{"sp"}},
	{Name: "tabulate", DisplayName: "Tabulate"},
	{Name: "toolz", DisplayName: "Toolz"},
}

// Lookup returns the library with the given canonical name.
func (r Registry) Lookup(name string) (Library, bool) {
	for _, lib := range r {
		if strings.EqualFold(lib.Name, name) {
			return lib, true
		}
	}
	return Library{}, false
}

var (
	importRe = regexp.MustCompile(`^import\s+(.+)$`)
	fromRe   = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+.+$`)
	asRe     = regexp.MustCompile(`^([\w.]+)(?:\s+as\s+(\w+))?$`)
)

// Import is one imported module extracted from source.
type Import struct {
	Module string // dotted module path
	Alias  string // name bound by an "as" clause, if any
	From   bool   // true for "from Module import ..."
}

// top returns the first segment of the dotted module path.
func (i Import) top() string {
	if idx := strings.IndexByte(i.Module, '.'); idx != -1 {
		return i.Module[:idx]
	}
	return i.Module
}

// Imports extracts every import statement from source.
func Imports(source string) []Import {
	var out []Import
	for _, line := range strings.Split(source, "\n") {
		if idx := strings.IndexByte(line, '#'); idx != -1 {
			line = line[:idx]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if m := fromRe.FindStringSubmatch(stmt); m != nil {
				out = append(out, Import{Module: m[1], From: true})
				continue
			}
			m := importRe.FindStringSubmatch(stmt)
			if m == nil {
				continue
			}
			for _, part := range strings.Split(m[1], ",") {
				pm := asRe.FindStringSubmatch(strings.TrimSpace(part))
				if pm == nil {
					continue
				}
				out = append(out, Import{Module: pm[1], Alias: pm[2]})
			}
		}
	}
	return out
}

// Detect returns the registry entries referenced by source, in registry
// order and without duplicates.
func Detect(source string, registry Registry) []Library {
	imports := Imports(source)
	if len(imports) == 0 {
		return nil
	}

	var found []Library
	for _, lib := range registry {
		if references(lib, imports) {
			found = append(found, lib)
		}
	}
	return found
}

func references(lib Library, imports []Import) bool {
	names := lib.names()
	for _, imp := range imports {
		top := imp.top()
		for _, n := range names {
			if strings.EqualFold(top, n) || strings.EqualFold(imp.Module, n) {
				return true
			}
		}
		if imp.Alias == "" {
			continue
		}
		for _, a := range lib.Aliases {
			if imp.Alias == a {
				return true
			}
		}
	}
	return false
}
