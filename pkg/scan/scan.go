// Package scan finds reexport directives in Go source trees.
package scan

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/reexport/internal/discovery"
	"github.com/Sumatoshi-tech/reexport/pkg/directive"
)

// Options configures a scan.
type Options struct {
	// Exclude holds doublestar globs matched against paths relative to the root.
	Exclude []string
}

// Directive is one invocation found in a source file.
type Directive struct {
	File       string               `json:"file"       yaml:"file"`
	Line       int                  `json:"line"       yaml:"line"`
	Package    string               `json:"package"    yaml:"package"`
	Invocation directive.Invocation `json:"invocation" yaml:"invocation"`
}

// Pos formats the directive location as file:line.
func (d Directive) Pos() string {
	return fmt.Sprintf("%s:%d", d.File, d.Line)
}

// Dir walks root and returns every directive, sorted by file then line.
// Nested modules, directories the go command ignores, excluded paths, test
// files and generated files are skipped. Malformed directives are reported
// together after the walk.
func Dir(ctx context.Context, root string, opts Options) ([]Directive, error) {
	matcher, err := discovery.NewMatcher(opts.Exclude)
	if err != nil {
		return nil, err
	}

	var (
		found []Directive
		errs  []error
	)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if path == root {
				return nil
			}

			if discovery.SkipDir(d.Name()) || matcher.Match(rel) || isModuleRoot(path) {
				return filepath.SkipDir
			}

			return nil
		}

		if !isSource(path) || matcher.Match(rel) {
			return nil
		}

		src, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}

		directives, fileErr := File(path, src)
		if fileErr != nil {
			errs = append(errs, fileErr)
		}

		found = append(found, directives...)

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan %s: %w", root, walkErr)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].File != found[j].File {
			return found[i].File < found[j].File
		}

		return found[i].Line < found[j].Line
	})

	return found, errors.Join(errs...)
}

// File extracts directives from one source file. Generated files carry none.
func File(path string, src []byte) ([]Directive, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if ast.IsGenerated(file) {
		return nil, nil
	}

	var (
		found []Directive
		errs  []error
	)

	for _, group := range file.Comments {
		for _, c := range group.List {
			inv, ok, parseErr := directive.ParseComment(c.Text)
			if !ok {
				continue
			}

			line := fset.Position(c.Slash).Line
			if parseErr != nil {
				errs = append(errs, fmt.Errorf("%s:%d: %w", path, line, parseErr))

				continue
			}

			found = append(found, Directive{
				File:       path,
				Line:       line,
				Package:    file.Name.Name,
				Invocation: inv,
			})
		}
	}

	return found, errors.Join(errs...)
}

func isSource(path string) bool {
	if strings.HasSuffix(path, "_test.go") {
		return false
	}

	lang, _ := enry.GetLanguageByExtension(path)

	return lang == "Go"
}

func isModuleRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "go.mod"))

	return err == nil
}
