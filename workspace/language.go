package workspace

import "strings"

// Language describes a supported source language.
type Language struct {
	ID        string
	Name      string
	Extension string
	// DefaultCode is the content of a freshly created document.
	DefaultCode string
}

// Languages is an ordered, immutable language registry.
type Languages []Language

// DefaultLanguages is the registry used when none is supplied.
var DefaultLanguages = Languages{
	{
		ID:          "python",
		Name:        "Python",
		Extension:   ".py",
		DefaultCode: "# Python code here\nprint(\"Hello, World!\")",
	},
	{
		ID:          "javascript",
		Name:        "JavaScript",
		Extension:   ".js",
		DefaultCode: "// JavaScript code here\nconsole.log(\"Hello, World!\");",
	},
	{
		ID:          "go",
		Name:        "Go",
		Extension:   ".go",
		DefaultCode: "// Go code here\npackage main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, World!\")\n}",
	},
	{
		ID:          "cpp",
		Name:        "C++",
		Extension:   ".cpp",
		DefaultCode: "// C++ code here\n#include <iostream>\n\nint main() {\n    std::cout << \"Hello, World!\" << std::endl;\n    return 0;\n}",
	},
}

// Lookup returns the language with the given id.
func (l Languages) Lookup(id string) (Language, bool) {
	for _, lang := range l {
		if lang.ID == id {
			return lang, true
		}
	}
	return Language{}, false
}

// ForFile returns the language whose extension matches name.
func (l Languages) ForFile(name string) (Language, bool) {
	lower := strings.ToLower(name)
	for _, lang := range l {
		if strings.HasSuffix(lower, lang.Extension) {
			return lang, true
		}
	}
	return Language{}, false
}

// IDs returns the language ids in registry order.
func (l Languages) IDs() []string {
	ids := make([]string, len(l))
	for i, lang := range l {
		ids[i] = lang.ID
	}
	return ids
}
