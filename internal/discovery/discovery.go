// Package discovery finds the packages a bundle invocation imports.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"go/build"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/src-d/enry/v2"
)

// Sentinel errors.
var (
	ErrDirNotFound    = errors.New("bundle directory not found")
	ErrNoPackages     = errors.New("no packages to bundle")
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)

// Options configures discovery.
type Options struct {
	// Exclude holds doublestar globs matched against paths relative to the
	// bundled directory.
	Exclude []string
	// BuildTags select files the same way the go command does.
	BuildTags []string
}

// Entry is one bundled package.
type Entry struct {
	// Name is the directory name, the last element of the import path.
	Name string `json:"name" yaml:"name"`
	// Dir is the absolute directory.
	Dir string `json:"dir" yaml:"dir"`
	// Package is the package clause name.
	Package string `json:"package" yaml:"package"`
}

// Names returns the directory names of entries in order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	return names
}

// Packages lists the immediate subdirectories of dir that hold an importable
// Go package, sorted by name. Hidden, underscore-prefixed, testdata, vendored
// and excluded directories are skipped, as are main packages.
func Packages(ctx context.Context, dir string, opts Options) ([]Entry, error) {
	matcher, err := NewMatcher(opts.Exclude)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	bctx := build.Default
	bctx.BuildTags = append(bctx.BuildTags, opts.BuildTags...)

	var entries []Entry

	for _, child := range children {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !child.IsDir() || SkipDir(child.Name()) || matcher.Match(child.Name()) {
			continue
		}

		sub := filepath.Join(dir, child.Name())

		pkg, importErr := bctx.ImportDir(sub, build.ImportComment)
		if importErr != nil {
			var noGo *build.NoGoError
			if errors.As(importErr, &noGo) {
				continue
			}

			return nil, fmt.Errorf("inspect %s: %w", sub, importErr)
		}

		if pkg.IsCommand() || len(pkg.GoFiles)+len(pkg.CgoFiles) == 0 {
			continue
		}

		entries = append(entries, Entry{Name: child.Name(), Dir: sub, Package: pkg.Name})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPackages, dir)
	}

	return entries, nil
}

// SkipDir reports whether the go command ignores a directory of this name
// when matching package patterns.
func SkipDir(name string) bool {
	if name == "testdata" || name == "vendor" {
		return true
	}

	return enry.IsDotFile(name) || strings.HasPrefix(name, "_")
}

// Matcher matches slash-separated relative paths against exclude globs.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns and builds a Matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}

	return &Matcher{patterns: patterns}, nil
}

// Match reports whether rel, or any directory above it, is excluded.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)

	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}

		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			return true
		}
	}

	return false
}
