// Package golang runs Go documents. Two backends are provided:
//
// StubBackend is a deliberate simulation. Its Transpiler does not compile
// Go: it pattern-matches the string literals passed to fmt.Print,
// fmt.Println and fmt.Printf, emits them as console.log calls in a script,
// and "executes" that script by scanning it for the same literals. No
// control flow, variables or expressions are evaluated.
//
// InterpBackend evaluates the program for real with the yaegi interpreter.
package golang

import (
	"regexp"
	"strings"
)

// NoOutput is reported when a simulated program prints nothing.
const NoOutput = "Code executed successfully (no output)"

var (
	printRe = regexp.MustCompile("fmt\\.Print(?:ln|f)?\\s*\\(\\s*[\"'`]([^\"'`]*)[\"'`]")
	logRe   = regexp.MustCompile(`console\.log\(['"]([^'"]*)['"]\)`)
)

// Transpiler is the simulated Go to JavaScript compiler.
type Transpiler struct{}

// Validate returns a warning for each structural marker code lacks. The
// warnings are advisory; compilation proceeds regardless.
func (Transpiler) Validate(code string) []string {
	var warnings []string
	if !strings.Contains(code, "package main") {
		warnings = append(warnings, `Warning: Go code should contain a "package main" declaration`)
	}
	if !strings.Contains(code, "func main()") {
		warnings = append(warnings, `Warning: Go code should contain a "func main()" function`)
	}
	return warnings
}

// Compile translates every literal print call into a console.log line
// inside an immediately invoked function.
func (Transpiler) Compile(code string) string {
	var b strings.Builder
	b.WriteString("// Compiled from Go to JavaScript (simulated)\n")
	b.WriteString("(function() {\n")
	for _, m := range printRe.FindAllStringSubmatch(code, -1) {
		if m[1] == "" {
			continue
		}
		b.WriteString(`  console.log("`)
		b.WriteString(m[1])
		b.WriteString("\");\n")
	}
	b.WriteString("})();\n")
	return b.String()
}

// Execute returns the program output of a compiled script: its logged
// literals joined by newlines, or NoOutput.
func (Transpiler) Execute(script string) string {
	var lines []string
	for _, m := range logRe.FindAllStringSubmatch(script, -1) {
		lines = append(lines, m[1])
	}
	if len(lines) == 0 {
		return NoOutput
	}
	return strings.Join(lines, "\n")
}
