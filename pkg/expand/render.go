package expand

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
)

// DefaultHeader marks generated files the way the Go toolchain recognizes.
const DefaultHeader = "Code generated by reexport. DO NOT EDIT."

// ErrNotRenderable is returned when Render is asked to print an extend expansion.
var ErrNotRenderable = errors.New("extend expansions are applied to the invoking file")

// RenderOptions controls file rendering.
type RenderOptions struct {
	// Header is the first comment line. Empty uses DefaultHeader.
	Header string
	// Filename is the destination file name, used for formatting diagnostics.
	Filename string
}

// Render prints an expansion as a complete Go file: header, invocations,
// package clause, imports, then one declaration group per statement.
func Render(exp Expansion, opts RenderOptions) ([]byte, error) {
	if exp.Helper == directive.HelperExtend {
		return nil, ErrNotRenderable
	}

	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "// %s\n", header)

	for _, inv := range exp.Invocations {
		fmt.Fprintf(&buf, "// %s\n", inv)
	}

	fmt.Fprintf(&buf, "\npackage %s\n", exp.Scope.PackageName)

	writeImports(&buf, exp.Statements)

	for _, st := range exp.Statements {
		if st.Kind == KindReexport {
			writeStatement(&buf, st)
		}
	}

	out, err := imports.Process(opts.Filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}

	return out, nil
}

func writeImports(buf *bytes.Buffer, statements []Statement) {
	var specs []string

	own := make(map[string]bool)

	for _, st := range statements {
		own[st.ImportPath] = true

		name := st.Alias
		if st.Kind == KindReexport && len(st.Exports) == 0 {
			name = "_"
		}

		specs = append(specs, name+" "+strconv.Quote(st.ImportPath))
	}

	seen := make(map[string]bool)

	for _, st := range statements {
		for _, imp := range st.Imports {
			if own[imp.Path] || seen[imp.Path] {
				continue
			}

			seen[imp.Path] = true
			specs = append(specs, imp.Name+" "+strconv.Quote(imp.Path))
		}
	}

	if len(specs) == 0 {
		return
	}

	buf.WriteString("\nimport (\n")

	for _, spec := range specs {
		buf.WriteString("\t" + spec + "\n")
	}

	buf.WriteString(")\n")
}

func writeStatement(buf *bytes.Buffer, st Statement) {
	if len(st.Exports) == 0 {
		fmt.Fprintf(buf, "\n// Package %s exports no identifiers.\n", st.Module)

		return
	}

	var types, consts, vars, funcs []Export

	for _, exp := range st.Exports {
		switch {
		case exp.Kind == ExportType:
			types = append(types, exp)
		case exp.Kind == ExportConst:
			consts = append(consts, exp)
		case exp.Kind == ExportFunc && exp.Generic():
			funcs = append(funcs, exp)
		default:
			vars = append(vars, exp)
		}
	}

	var parts []string

	parts = appendGroup(parts, "type", types, func(e Export) string {
		return e.Name + e.TypeParams + " = " + st.Alias + "." + e.Name + e.TypeArgs
	})
	parts = appendGroup(parts, "const", consts, func(e Export) string {
		return e.Name + " = " + st.Alias + "." + e.Name
	})
	parts = appendGroup(parts, "var", vars, func(e Export) string {
		return e.Name + " = " + st.Alias + "." + e.Name
	})

	for _, fn := range funcs {
		call := st.Alias + "." + fn.Name + fn.TypeArgs + fn.Args

		body := "return " + call
		if fn.Results == "" {
			body = call
		}

		parts = append(parts, fmt.Sprintf("func %s%s%s %s {\n\t%s\n}\n", fn.Name, fn.TypeParams, fn.Params, fn.Results, body))
	}

	fmt.Fprintf(buf, "\n// Re-exported from %s.\n", st.ImportPath)
	buf.WriteString(strings.Join(parts, "\n"))
}

func appendGroup(parts []string, keyword string, exports []Export, line func(Export) string) []string {
	if len(exports) == 0 {
		return parts
	}

	var group strings.Builder

	group.WriteString(keyword + " (\n")

	for _, exp := range exports {
		group.WriteString("\t" + line(exp) + "\n")
	}

	group.WriteString(")\n")

	return append(parts, group.String())
}

// Summary renders a one-line description of each statement, used by dry runs
// and listings.
func Summary(exp Expansion) []string {
	lines := make([]string, 0, len(exp.Statements))

	for _, st := range exp.Statements {
		line := fmt.Sprintf("%s %s", st.Kind, st.ImportPath)
		if st.Kind == KindReexport {
			line += fmt.Sprintf(" (%d identifiers)", len(st.Exports))
		}

		lines = append(lines, line)
	}

	return lines
}

// Count returns the number of statements across expansions.
func Count(exps ...Expansion) int {
	total := 0
	for _, exp := range exps {
		total += len(exp.Statements)
	}

	return total
}
