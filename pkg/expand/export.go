package expand

import "fmt"

// ExportKind classifies an exported identifier.
type ExportKind int

// Export kinds.
const (
	ExportType ExportKind = iota + 1
	ExportConst
	ExportVar
	ExportFunc
)

// String returns the Go keyword that declares the kind.
func (k ExportKind) String() string {
	switch k {
	case ExportType:
		return "type"
	case ExportConst:
		return "const"
	case ExportVar:
		return "var"
	case ExportFunc:
		return "func"
	default:
		return fmt.Sprintf("ExportKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k ExportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Export is one exported identifier of a loaded package. Generic types carry
// their type parameter lists; generic functions additionally carry the pieces
// of a forwarding wrapper, because Go cannot alias an uninstantiated function.
type Export struct {
	Name string     `json:"name" yaml:"name"`
	Kind ExportKind `json:"kind" yaml:"kind"`

	// TypeParams is the declaration form, e.g. "[K comparable, V any]".
	TypeParams string `json:"type_params,omitempty" yaml:"type_params,omitempty"`
	// TypeArgs is the instantiation form, e.g. "[K, V]".
	TypeArgs string `json:"type_args,omitempty" yaml:"type_args,omitempty"`

	// Params, Args and Results describe a generic function wrapper:
	// "(p0 K, p1 ...V)", "(p0, p1...)" and "V" or "(V, error)".
	Params  string `json:"params,omitempty"  yaml:"params,omitempty"`
	Args    string `json:"args,omitempty"    yaml:"args,omitempty"`
	Results string `json:"results,omitempty" yaml:"results,omitempty"`
}

// Generic reports whether the export carries type parameters.
func (e Export) Generic() bool {
	return e.TypeParams != ""
}

// Package is the exported surface of one loaded package.
type Package struct {
	Name    string
	Path    string
	Exports []Export
	Imports []Import
	// Skipped names exports that cannot be forwarded, such as generic
	// functions whose signatures mention unexported types.
	Skipped []string
}
