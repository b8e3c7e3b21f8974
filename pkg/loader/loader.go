// Package loader resolves packages through the go command and extracts the
// exported surface that re-export statements forward.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/tools/go/packages"

	"github.com/Sumatoshi-tech/reexport/pkg/expand"
)

// Sentinel errors.
var (
	ErrPackageNotFound = errors.New("package not found")
	ErrPackageErrors   = errors.New("package has errors")
)

const (
	tracerName = "reexport/loader"

	loadMode = packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedImports | packages.NeedDeps
)

// Options configures how the go command resolves packages.
type Options struct {
	// BuildTags are passed to the go command as -tags.
	BuildTags []string
	// Env entries are appended to the process environment.
	Env []string
}

// Deps holds injectable dependencies. Zero-value fields use defaults.
type Deps struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Loader loads packages relative to a directory.
type Loader struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Loader.
func New(opts Options, deps Deps) *Loader {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}

	return &Loader{opts: opts, logger: logger, tracer: tracer}
}

// Scope resolves the package that lives in dir.
func (l *Loader) Scope(ctx context.Context, dir string) (expand.Scope, error) {
	ctx, span := l.tracer.Start(ctx, "loader.Scope", trace.WithAttributes(attribute.String("dir", dir)))
	defer span.End()

	pkgs, err := packages.Load(l.config(ctx, dir, packages.NeedName), ".")
	if err != nil {
		span.RecordError(err)

		return expand.Scope{}, fmt.Errorf("resolve %s: %w", dir, err)
	}

	if len(pkgs) == 0 || pkgs[0].Name == "" {
		return expand.Scope{}, fmt.Errorf("%w: %s%s", ErrPackageNotFound, dir, describe(pkgs))
	}

	return expand.Scope{
		Dir:         dir,
		PackageName: pkgs[0].Name,
		ImportPath:  pkgs[0].PkgPath,
	}, nil
}

// Load type-checks every target and returns its exported surface keyed by
// import path. Targets that share an import path are loaded once.
func (l *Loader) Load(ctx context.Context, dir string, targets []expand.Target) (map[string]expand.Package, error) {
	result := make(map[string]expand.Package, len(targets))
	if len(targets) == 0 {
		return result, nil
	}

	ctx, span := l.tracer.Start(ctx, "loader.Load", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.Int("targets", len(targets)),
	))
	defer span.End()

	aliases := make(map[string]string, len(targets))
	patterns := make([]string, 0, len(targets))

	for _, target := range targets {
		if _, ok := aliases[target.Path]; ok {
			continue
		}

		aliases[target.Path] = target.Alias
		patterns = append(patterns, target.Path)
	}

	pkgs, err := packages.Load(l.config(ctx, dir, loadMode), patterns...)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("load %s: %w", strings.Join(patterns, " "), err)
	}

	byPath := make(map[string]*packages.Package, len(pkgs))
	for _, pkg := range pkgs {
		byPath[pkg.PkgPath] = pkg
	}

	var errs []error

	q := newQualifier(aliases)

	for _, path := range patterns {
		pkg, ok := byPath[path]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrPackageNotFound, path))

			continue
		}

		if pkg.Name == "" {
			errs = append(errs, fmt.Errorf("%w: %s%s", ErrPackageNotFound, path, describe([]*packages.Package{pkg})))

			continue
		}

		if len(pkg.Errors) > 0 || pkg.Types == nil {
			errs = append(errs, fmt.Errorf("%w: %s%s", ErrPackageErrors, path, describe([]*packages.Package{pkg})))

			continue
		}

		surface := extract(pkg.Types, q)
		if len(surface.Skipped) > 0 {
			l.logger.WarnContext(ctx, "exports cannot be forwarded",
				"package", path, "skipped", surface.Skipped)
		}

		l.logger.DebugContext(ctx, "package loaded",
			"package", path, "exports", len(surface.Exports))

		result[path] = surface
	}

	if len(errs) > 0 {
		err = errors.Join(errs...)
		span.RecordError(err)

		return nil, err
	}

	return result, nil
}

func (l *Loader) config(ctx context.Context, dir string, mode packages.LoadMode) *packages.Config {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    mode,
	}

	if len(l.opts.BuildTags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(l.opts.BuildTags, ",")}
	}

	if len(l.opts.Env) > 0 {
		cfg.Env = append(os.Environ(), l.opts.Env...)
	}

	return cfg
}

// describe flattens package errors into a suffix for wrapped errors.
func describe(pkgs []*packages.Package) string {
	var msgs []string

	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			msgs = append(msgs, e.Msg)
		}
	})

	if len(msgs) == 0 {
		return ""
	}

	return ": " + strings.Join(msgs, "; ")
}
