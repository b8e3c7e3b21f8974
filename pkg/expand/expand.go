// Package expand turns helper invocations into Go declarations.
//
// Expansion happens in two pure steps around one I/O step:
//
//  1. Plan maps an invocation onto statements, one per module identifier
//     (expose, package), one per discovered package (bundle), or exactly one
//     (extend). No filesystem or toolchain access happens here.
//  2. The caller loads the exported surface of every planned import path and
//     hands it back through Attach.
//  3. Render (or ApplyExtend) prints the statements as gofmt-formatted source.
//
// Same invocation and same loaded packages always produce the same bytes.
package expand

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
)

// Sentinel expansion errors.
var (
	ErrNoParent     = errors.New("package has no parent package")
	ErrUnresolved   = errors.New("import path was not loaded")
	ErrMixedHelpers = errors.New("cannot merge expansions of different helpers")
)

// Kind classifies an emitted statement.
type Kind int

// Statement kinds.
const (
	// KindReexport aliases every exported identifier of a package.
	KindReexport Kind = iota + 1
	// KindBlankImport links a package in for its side effects.
	KindBlankImport
	// KindDotImport imports every exported identifier of a package unqualified.
	KindDotImport
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindReexport:
		return "reexport"
	case KindBlankImport:
		return "blank-import"
	case KindDotImport:
		return "dot-import"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Scope identifies the package an invocation lives in.
type Scope struct {
	Dir         string `json:"dir"          yaml:"dir"`
	PackageName string `json:"package_name" yaml:"package_name"`
	ImportPath  string `json:"import_path"  yaml:"import_path"`
}

// Parent returns the import path one level up.
func (s Scope) Parent() (string, error) {
	parent := path.Dir(s.ImportPath)
	if parent == "." || parent == "/" || s.ImportPath == "" {
		return "", fmt.Errorf("%w: %q", ErrNoParent, s.ImportPath)
	}

	return parent, nil
}

// Import is an extra import needed by rendered signatures.
type Import struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Statement is one emitted declaration group.
type Statement struct {
	Module     string   `json:"module"            yaml:"module"`
	Alias      string   `json:"alias,omitempty"   yaml:"alias,omitempty"`
	ImportPath string   `json:"import_path"       yaml:"import_path"`
	Kind       Kind     `json:"kind"              yaml:"kind"`
	Exports    []Export `json:"exports,omitempty" yaml:"exports,omitempty"`
	Imports    []Import `json:"imports,omitempty" yaml:"imports,omitempty"`
}

// Expansion is the complete plan of one or more invocations of a helper.
type Expansion struct {
	Helper      directive.Helper       `json:"helper"      yaml:"helper"`
	Scope       Scope                  `json:"scope"       yaml:"scope"`
	Invocations []directive.Invocation `json:"-"           yaml:"-"`
	Statements  []Statement            `json:"statements"  yaml:"statements"`
}

// Target is a package that must be loaded to complete an expansion.
type Target struct {
	Alias string
	Path  string
}

// Plan maps an invocation onto statements. bundled lists the package
// directories found beneath the bundle path and is ignored by other helpers.
func Plan(inv directive.Invocation, scope Scope, bundled []string) (Expansion, error) {
	exp := Expansion{
		Helper:      inv.Helper,
		Scope:       scope,
		Invocations: []directive.Invocation{inv},
	}

	switch inv.Helper {
	case directive.HelperExpose:
		exp.Statements = reexports(scope.ImportPath, inv.Modules)
	case directive.HelperPackage:
		parent, err := scope.Parent()
		if err != nil {
			return Expansion{}, err
		}

		exp.Statements = reexports(parent, inv.Modules)
	case directive.HelperExtend:
		parent, err := scope.Parent()
		if err != nil {
			return Expansion{}, err
		}

		exp.Statements = []Statement{{
			Module:     path.Base(parent),
			Alias:      ".",
			ImportPath: parent,
			Kind:       KindDotImport,
		}}
	case directive.HelperBundle:
		base := path.Join(scope.ImportPath, filepath.ToSlash(inv.Path))

		exp.Statements = make([]Statement, 0, len(bundled))
		for _, name := range bundled {
			exp.Statements = append(exp.Statements, Statement{
				Module:     name,
				Alias:      "_",
				ImportPath: path.Join(base, name),
				Kind:       KindBlankImport,
			})
		}
	default:
		return Expansion{}, fmt.Errorf("%w: %q", directive.ErrUnknownHelper, inv.Helper)
	}

	return exp, nil
}

func reexports(base string, modules []string) []Statement {
	statements := make([]Statement, 0, len(modules))

	for _, module := range modules {
		statements = append(statements, Statement{
			Module:     module,
			Alias:      module,
			ImportPath: path.Join(base, module),
			Kind:       KindReexport,
		})
	}

	return statements
}

// Merge concatenates expansions of the same helper and scope, keeping
// statement order.
func Merge(exps ...Expansion) (Expansion, error) {
	if len(exps) == 0 {
		return Expansion{}, nil
	}

	merged := Expansion{Helper: exps[0].Helper, Scope: exps[0].Scope}

	for _, exp := range exps {
		if exp.Helper != merged.Helper {
			return Expansion{}, fmt.Errorf("%w: %s and %s", ErrMixedHelpers, merged.Helper, exp.Helper)
		}

		merged.Invocations = append(merged.Invocations, exp.Invocations...)
		merged.Statements = append(merged.Statements, exp.Statements...)
	}

	return merged, nil
}

// Targets lists the packages whose exports must be loaded, without duplicates
// and in statement order. A dot import is loaded so extend can keep it in use.
func (e Expansion) Targets() []Target {
	var targets []Target

	seen := make(map[string]bool)

	for _, st := range e.Statements {
		if !st.Kind.loads() || seen[st.ImportPath] {
			continue
		}

		seen[st.ImportPath] = true
		targets = append(targets, Target{Alias: st.Alias, Path: st.ImportPath})
	}

	return targets
}

// Attach fills re-export and dot-import statements with the exported surface
// of the loaded packages, keyed by import path.
func (e *Expansion) Attach(pkgs map[string]Package) error {
	for i := range e.Statements {
		st := &e.Statements[i]
		if !st.Kind.loads() {
			continue
		}

		pkg, ok := pkgs[st.ImportPath]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnresolved, st.ImportPath)
		}

		st.Exports = pkg.Exports
		if st.Kind == KindReexport {
			st.Imports = pkg.Imports
		}
	}

	return nil
}

func (k Kind) loads() bool {
	return k == KindReexport || k == KindDotImport
}
