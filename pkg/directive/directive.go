// Package directive parses reexport helper invocations.
//
// An invocation names one of four helpers and carries its arguments. It can be
// written in three ways:
//
//	expose(models, utils)              textual form (expand command, MCP tool)
//	//reexport:expose models, utils    source directive (generate command)
//	reexport expose models utils       command line (go:generate)
//
// Module lists are comma separated and accept a trailing comma. Every element
// must be a Go identifier.
package directive

import (
	"errors"
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/Sumatoshi-tech/reexport/internal/suggest"
)

// Helper names an expansion helper.
type Helper string

// Supported helpers.
const (
	// HelperBundle links every package under a directory into the current package.
	HelperBundle Helper = "bundle"
	// HelperExpose re-exports sibling packages into the current package.
	HelperExpose Helper = "expose"
	// HelperPackage re-exports packages declared next to the parent package.
	HelperPackage Helper = "package"
	// HelperExtend dot-imports the parent package into the invoking file.
	HelperExtend Helper = "extend"
)

// Prefix marks a source comment as a reexport directive.
const Prefix = "//reexport:"

// Sentinel parse errors.
var (
	ErrSyntax        = errors.New("invalid invocation syntax")
	ErrUnknownHelper = errors.New("unknown helper")
	ErrArity         = errors.New("wrong number of arguments")
)

// Invocation is one parsed helper call.
type Invocation struct {
	Helper Helper `json:"helper" yaml:"helper"`
	// Modules holds the identifiers passed to expose and package, in input order.
	Modules []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	// Path holds the directory passed to bundle.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Helpers returns every supported helper in a stable order.
func Helpers() []Helper {
	return []Helper{HelperBundle, HelperExpose, HelperPackage, HelperExtend}
}

// ParseHelper resolves a helper name.
func ParseHelper(name string) (Helper, error) {
	helper := Helper(strings.TrimSpace(name))
	if slices.Contains(Helpers(), helper) {
		return helper, nil
	}

	names := make([]string, 0, len(Helpers()))
	for _, h := range Helpers() {
		names = append(names, string(h))
	}

	if closest, ok := suggest.Closest(string(helper), names); ok {
		return "", fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownHelper, name, closest)
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownHelper, name)
}

// Parse parses the textual form `helper(args)`.
func Parse(text string) (Invocation, error) {
	text = strings.TrimSpace(text)

	open := strings.IndexByte(text, '(')
	if open < 0 || !strings.HasSuffix(text, ")") {
		return Invocation{}, fmt.Errorf("%w: %q: expected helper(args)", ErrSyntax, text)
	}

	helper, err := ParseHelper(text[:open])
	if err != nil {
		return Invocation{}, err
	}

	return build(helper, text[open+1:len(text)-1])
}

// ParseComment parses a `//reexport:helper args` comment. The boolean reports
// whether the comment is a directive at all; non-directive comments return
// false and a nil error.
func ParseComment(comment string) (Invocation, bool, error) {
	rest, ok := strings.CutPrefix(comment, Prefix)
	if !ok {
		return Invocation{}, false, nil
	}

	name, body := rest, ""
	if idx := strings.IndexFunc(rest, unicode.IsSpace); idx >= 0 {
		name, body = rest[:idx], rest[idx+1:]
	}

	helper, err := ParseHelper(name)
	if err != nil {
		return Invocation{}, true, err
	}

	inv, err := build(helper, body)

	return inv, true, err
}

// FromArgs builds an invocation from command-line arguments. Each argument may
// itself be a comma separated list, so both `expose a b` and `expose a, b` work.
// The bundle path may be given bare or quoted.
func FromArgs(helper Helper, args []string) (Invocation, error) {
	switch helper {
	case HelperBundle:
		if len(args) != 1 {
			return Invocation{}, fmt.Errorf("%w: bundle takes one path, got %d", ErrArity, len(args))
		}

		path := args[0]
		if unquoted, err := strconv.Unquote(path); err == nil {
			path = unquoted
		}

		return Invocation{Helper: helper, Path: path}, nil
	case HelperExtend:
		if len(args) != 0 {
			return Invocation{}, fmt.Errorf("%w: extend takes no arguments, got %d", ErrArity, len(args))
		}

		return Invocation{Helper: helper}, nil
	case HelperExpose, HelperPackage:
		modules := make([]string, 0, len(args))

		for _, arg := range args {
			list, err := parseList(arg)
			if err != nil {
				return Invocation{}, err
			}

			modules = append(modules, list...)
		}

		return Invocation{Helper: helper, Modules: modules}, nil
	default:
		return Invocation{}, fmt.Errorf("%w: %q", ErrUnknownHelper, helper)
	}
}

// String renders the canonical textual form accepted by Parse.
func (inv Invocation) String() string {
	switch inv.Helper {
	case HelperBundle:
		return fmt.Sprintf("%s(%s)", inv.Helper, strconv.Quote(inv.Path))
	case HelperExpose, HelperPackage:
		return fmt.Sprintf("%s(%s)", inv.Helper, strings.Join(inv.Modules, ", "))
	default:
		return string(inv.Helper) + "()"
	}
}

func build(helper Helper, body string) (Invocation, error) {
	body = strings.TrimSpace(body)

	switch helper {
	case HelperBundle:
		if body == "" {
			return Invocation{}, fmt.Errorf("%w: bundle takes one path", ErrArity)
		}

		path, err := strconv.Unquote(body)
		if err != nil {
			return Invocation{}, fmt.Errorf("%w: bundle path must be a string literal, got %s", ErrSyntax, body)
		}

		return Invocation{Helper: helper, Path: path}, nil
	case HelperExtend:
		if body != "" {
			return Invocation{}, fmt.Errorf("%w: extend takes no arguments", ErrArity)
		}

		return Invocation{Helper: helper}, nil
	default:
		modules, err := parseList(body)
		if err != nil {
			return Invocation{}, err
		}

		return Invocation{Helper: helper, Modules: modules}, nil
	}
}

// parseList splits a comma separated identifier list. One trailing comma is
// permitted; any other empty element is a syntax error.
func parseList(body string) ([]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	parts := strings.Split(body, ",")
	if strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	modules := make([]string, 0, len(parts))

	for _, part := range parts {
		name := strings.TrimSpace(part)
		if !IsModuleName(name) {
			return nil, fmt.Errorf("%w: %q is not a module identifier", ErrSyntax, name)
		}

		modules = append(modules, name)
	}

	return modules, nil
}

// IsModuleName reports whether name can be used as a module identifier.
func IsModuleName(name string) bool {
	return name != "_" && token.IsIdentifier(name)
}
