package loader

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/reexport/pkg/expand"
)

// extract walks the package scope in name order and describes every exported
// object. Foreign packages are named through q, which is shared by every
// package loaded for one generated file.
func extract(pkg *types.Package, q *qualifier) expand.Package {
	q.used = make(map[string]bool)

	surface := expand.Package{Name: pkg.Name(), Path: pkg.Path()}

	scope := pkg.Scope()

	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}

		exp, ok := describeObject(obj, q)
		if !ok {
			surface.Skipped = append(surface.Skipped, name)

			continue
		}

		surface.Exports = append(surface.Exports, exp)
	}

	surface.Imports = q.list()

	return surface
}

func describeObject(obj types.Object, q *qualifier) (expand.Export, bool) {
	exp := expand.Export{Name: obj.Name()}

	switch obj := obj.(type) {
	case *types.TypeName:
		exp.Kind = expand.ExportType

		params := typeParamsOf(obj.Type())
		if params.Len() == 0 {
			return exp, true
		}

		if typeParamsHidden(params) {
			return exp, false
		}

		exp.TypeParams, exp.TypeArgs = formatTypeParams(params, q)
	case *types.Const:
		exp.Kind = expand.ExportConst
	case *types.Var:
		exp.Kind = expand.ExportVar
	case *types.Func:
		exp.Kind = expand.ExportFunc

		sig, ok := obj.Type().(*types.Signature)
		if !ok || sig.TypeParams().Len() == 0 {
			return exp, true
		}

		if typeParamsHidden(sig.TypeParams()) || hidden(sig.Params()) || hidden(sig.Results()) {
			return exp, false
		}

		exp.TypeParams, exp.TypeArgs = formatTypeParams(sig.TypeParams(), q)
		exp.Params, exp.Args = formatParams(sig, q)
		exp.Results = formatResults(sig.Results(), q)
	default:
		return exp, false
	}

	return exp, true
}

func typeParamsOf(t types.Type) *types.TypeParamList {
	switch t := t.(type) {
	case *types.Named:
		return t.TypeParams()
	case *types.Alias:
		return t.TypeParams()
	default:
		return nil
	}
}

// formatTypeParams returns the declaration and instantiation forms of a
// type parameter list. Blank parameters are renamed so they can be passed on.
func formatTypeParams(params *types.TypeParamList, q *qualifier) (decl, args string) {
	names := make([]string, params.Len())
	decls := make([]string, params.Len())

	for i := range params.Len() {
		tp := params.At(i)

		names[i] = tp.Obj().Name()
		if names[i] == "_" {
			names[i] = fmt.Sprintf("T%d", i)
		}

		decls[i] = names[i] + " " + types.TypeString(tp.Constraint(), q.qualify)
	}

	decl = "[" + strings.Join(decls, ", ")
	// [P *C] would parse as an array length expression.
	if len(decls) == 1 && strings.HasPrefix(types.TypeString(params.At(0).Constraint(), q.qualify), "*") {
		decl += ","
	}

	return decl + "]", "[" + strings.Join(names, ", ") + "]"
}

func formatParams(sig *types.Signature, q *qualifier) (params, args string) {
	tuple := sig.Params()
	decls := make([]string, tuple.Len())
	names := make([]string, tuple.Len())

	for i := range tuple.Len() {
		name := fmt.Sprintf("p%d", i)
		typ := tuple.At(i).Type()

		if sig.Variadic() && i == tuple.Len()-1 {
			if slice, ok := typ.(*types.Slice); ok {
				decls[i] = name + " ..." + types.TypeString(slice.Elem(), q.qualify)
				names[i] = name + "..."

				continue
			}
		}

		decls[i] = name + " " + types.TypeString(typ, q.qualify)
		names[i] = name
	}

	return "(" + strings.Join(decls, ", ") + ")", "(" + strings.Join(names, ", ") + ")"
}

func formatResults(tuple *types.Tuple, q *qualifier) string {
	switch tuple.Len() {
	case 0:
		return ""
	case 1:
		return types.TypeString(tuple.At(0).Type(), q.qualify)
	}

	parts := make([]string, tuple.Len())
	for i := range tuple.Len() {
		parts[i] = types.TypeString(tuple.At(i).Type(), q.qualify)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// qualifier names foreign packages in printed types and records the imports
// the generated file needs for them. Every import path gets one local name
// that differs from the re-exported aliases and from every other path's name.
type qualifier struct {
	aliases map[string]string
	names   map[string]string
	taken   map[string]bool
	used    map[string]bool
}

// newQualifier reserves the import aliases of the re-exported packages,
// keyed by import path.
func newQualifier(aliases map[string]string) *qualifier {
	q := &qualifier{
		aliases: aliases,
		names:   make(map[string]string),
		taken:   make(map[string]bool, len(aliases)),
		used:    make(map[string]bool),
	}

	for _, alias := range aliases {
		q.taken[alias] = true
	}

	return q
}

func (q *qualifier) qualify(pkg *types.Package) string {
	if alias, ok := q.aliases[pkg.Path()]; ok {
		if alias == "." {
			return ""
		}

		return alias
	}

	name, ok := q.names[pkg.Path()]
	if !ok {
		name = pkg.Name()
		for n := 2; q.taken[name]; n++ {
			name = fmt.Sprintf("%s%d", pkg.Name(), n)
		}

		q.taken[name] = true
		q.names[pkg.Path()] = name
	}

	q.used[pkg.Path()] = true

	return name
}

// list returns the imports used since the last extract call, by path.
func (q *qualifier) list() []expand.Import {
	if len(q.used) == 0 {
		return nil
	}

	out := make([]expand.Import, 0, len(q.used))
	for path := range q.used {
		out = append(out, expand.Import{Name: q.names[path], Path: path})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func typeParamsHidden(params *types.TypeParamList) bool {
	for i := range params.Len() {
		if hiddenType(params.At(i).Constraint()) {
			return true
		}
	}

	return false
}

func hidden(tuple *types.Tuple) bool {
	for i := range tuple.Len() {
		if hiddenType(tuple.At(i).Type()) {
			return true
		}
	}

	return false
}

// hiddenType reports whether t cannot be spelled outside its package: it
// names an unexported type or declares unexported fields or methods.
func hiddenType(t types.Type) bool {
	switch t := t.(type) {
	case *types.Named:
		if t.Obj().Pkg() != nil && !t.Obj().Exported() {
			return true
		}

		return typeListHidden(t.TypeArgs())
	case *types.Alias:
		if t.Obj().Pkg() != nil && !t.Obj().Exported() {
			return true
		}

		return typeListHidden(t.TypeArgs())
	case *types.Pointer:
		return hiddenType(t.Elem())
	case *types.Slice:
		return hiddenType(t.Elem())
	case *types.Array:
		return hiddenType(t.Elem())
	case *types.Chan:
		return hiddenType(t.Elem())
	case *types.Map:
		return hiddenType(t.Key()) || hiddenType(t.Elem())
	case *types.Signature:
		return hidden(t.Params()) || hidden(t.Results())
	case *types.Struct:
		for i := range t.NumFields() {
			field := t.Field(i)
			if !field.Exported() || hiddenType(field.Type()) {
				return true
			}
		}
	case *types.Interface:
		for i := range t.NumExplicitMethods() {
			method := t.ExplicitMethod(i)
			if !method.Exported() || hiddenType(method.Type()) {
				return true
			}
		}

		for i := range t.NumEmbeddeds() {
			if hiddenType(t.EmbeddedType(i)) {
				return true
			}
		}
	case *types.Union:
		for i := range t.Len() {
			if hiddenType(t.Term(i).Type()) {
				return true
			}
		}
	}

	return false
}

func typeListHidden(list *types.TypeList) bool {
	for i := range list.Len() {
		if hiddenType(list.At(i)) {
			return true
		}
	}

	return false
}
