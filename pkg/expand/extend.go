package expand

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
)

// Sentinel extend errors.
var (
	// ErrNotExtend is returned when ApplyExtend receives another helper's expansion.
	ErrNotExtend = errors.New("expansion is not an extend expansion")
	// ErrNothingToExtend is returned when the parent package has no export a
	// file-level declaration can reference, so its dot import would be unused.
	ErrNothingToExtend = errors.New("parent package has no export to keep a dot import in use")
)

// ApplyExtend adds the dot import planned by an extend expansion to the
// invoking file. Go imports are file scoped, so the statement cannot live in a
// separate generated file. Go rejects unused imports, so a blank declaration
// referencing one parent export is appended with the import. The boolean
// reports whether src changed; a file that already carries the dot import is
// returned untouched.
func ApplyExtend(filename string, src []byte, exp Expansion) ([]byte, bool, error) {
	if exp.Helper != directive.HelperExtend {
		return nil, false, fmt.Errorf("%w: %s", ErrNotExtend, exp.Helper)
	}

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", filename, err)
	}

	var keepAlive []string

	for _, st := range exp.Statements {
		if st.Kind != KindDotImport || hasDotImport(file, st.ImportPath) {
			continue
		}

		decl, ok := keepAliveDecl(st)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrNothingToExtend, st.ImportPath)
		}

		astutil.AddNamedImport(fset, file, ".", st.ImportPath)
		keepAlive = append(keepAlive, decl)
	}

	if len(keepAlive) == 0 {
		return src, false, nil
	}

	var buf bytes.Buffer

	err = format.Node(&buf, fset, file)
	if err != nil {
		return nil, false, fmt.Errorf("format %s: %w", filename, err)
	}

	for _, decl := range keepAlive {
		buf.WriteString("\n" + decl + "\n")
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, false, fmt.Errorf("format %s: %w", filename, err)
	}

	return out, true, nil
}

func hasDotImport(file *ast.File, importPath string) bool {
	for _, spec := range file.Imports {
		if spec.Name == nil || spec.Name.Name != "." {
			continue
		}

		if path, err := strconv.Unquote(spec.Path.Value); err == nil && path == importPath {
			return true
		}
	}

	return false
}

// keepAliveDecl returns a blank declaration that uses the first export, in
// name order, that can be referenced without instantiation.
func keepAliveDecl(st Statement) (string, bool) {
	for _, exp := range st.Exports {
		if exp.Generic() {
			continue
		}

		comment := fmt.Sprintf("// Keeps the dot import of %q in use.\n", st.ImportPath)

		if exp.Kind == ExportType {
			return comment + "var _ *" + exp.Name, true
		}

		return comment + "var _ = " + exp.Name, true
	}

	return "", false
}
