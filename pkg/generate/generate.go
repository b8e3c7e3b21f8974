// Package generate runs helper invocations end to end: it resolves the
// invoking package, plans and renders the expansion, and writes, prints or
// checks the result.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/reexport/internal/discovery"
	"github.com/Sumatoshi-tech/reexport/pkg/directive"
	"github.com/Sumatoshi-tech/reexport/pkg/expand"
	"github.com/Sumatoshi-tech/reexport/pkg/observability"
	"github.com/Sumatoshi-tech/reexport/pkg/scan"
)

// Sentinel errors.
var (
	ErrStale         = errors.New("generated file is out of date")
	ErrNoSourceFile  = errors.New("extend needs the invoking source file")
	ErrNoInvocations = errors.New("no invocations to run")
)

const (
	tracerName = "reexport/generate"

	defaultSuffix = "_gen.go"
	filePerm      = 0o644
)

// Mode selects what happens to the rendered content.
type Mode int

// Run modes.
const (
	// ModeWrite writes files whose content changed.
	ModeWrite Mode = iota
	// ModeDryRun renders without touching the filesystem.
	ModeDryRun
	// ModeCheck fails with ErrStale when the file on disk differs.
	ModeCheck
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeDryRun:
		return "dry-run"
	case ModeCheck:
		return "check"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Loader resolves scopes and exported surfaces. *loader.Loader satisfies it.
type Loader interface {
	Scope(ctx context.Context, dir string) (expand.Scope, error)
	Load(ctx context.Context, dir string, targets []expand.Target) (map[string]expand.Package, error)
}

// Options configures an Engine.
type Options struct {
	Mode Mode
	// Suffix names generated files "<stem>_<helper><Suffix>".
	Suffix string
	// Header overrides the generated-code marker line.
	Header string
	// ScanExclude and BundleExclude are doublestar globs.
	ScanExclude   []string
	BundleExclude []string
	// BuildTags select files when discovering bundled packages.
	BuildTags []string
}

// Deps holds injectable dependencies. Logger and Tracer default when nil;
// Metrics is optional.
type Deps struct {
	Loader  Loader
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.GenerationMetrics
}

// Engine executes invocations.
type Engine struct {
	opts    Options
	loader  Loader
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.GenerationMetrics
}

// Request is one run: every invocation shares a helper and an invoking file.
type Request struct {
	// Dir is the directory of the invoking package.
	Dir string
	// File is the invoking source file. It names the output file and is the
	// file extend rewrites. Empty names the output after the package.
	File        string
	Invocations []directive.Invocation
}

// Result describes one run.
type Result struct {
	// Output is the file written, or that would be written.
	Output string
	// Content is the rendered file.
	Content []byte
	// Changed reports whether Content differs from the file on disk.
	Changed bool
	// Statements is the number of statements in the expansion.
	Statements int
	// Expansion is the resolved plan.
	Expansion expand.Expansion
	// Diff is a unified diff of the disk content against Content, set when
	// the file changed in check or dry-run mode.
	Diff string
}

// New creates an Engine.
func New(opts Options, deps Deps) *Engine {
	if opts.Suffix == "" {
		opts.Suffix = defaultSuffix
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}

	return &Engine{
		opts:    opts,
		loader:  deps.Loader,
		logger:  logger,
		tracer:  tracer,
		metrics: deps.Metrics,
	}
}

// Plan resolves the expansion of a request without rendering it.
func (e *Engine) Plan(ctx context.Context, req Request) (expand.Expansion, error) {
	if len(req.Invocations) == 0 {
		return expand.Expansion{}, ErrNoInvocations
	}

	scope, err := e.loader.Scope(ctx, req.Dir)
	if err != nil {
		return expand.Expansion{}, err
	}

	exps := make([]expand.Expansion, 0, len(req.Invocations))

	for _, inv := range req.Invocations {
		var bundled []string

		if inv.Helper == directive.HelperBundle {
			entries, discErr := discovery.Packages(ctx, filepath.Join(req.Dir, filepath.FromSlash(inv.Path)), discovery.Options{
				Exclude:   e.opts.BundleExclude,
				BuildTags: e.opts.BuildTags,
			})
			if discErr != nil {
				return expand.Expansion{}, fmt.Errorf("%s: %w", inv, discErr)
			}

			bundled = discovery.Names(entries)
		}

		exp, planErr := expand.Plan(inv, scope, bundled)
		if planErr != nil {
			return expand.Expansion{}, fmt.Errorf("%s: %w", inv, planErr)
		}

		exps = append(exps, exp)
	}

	merged, err := expand.Merge(exps...)
	if err != nil {
		return expand.Expansion{}, err
	}

	if targets := merged.Targets(); len(targets) > 0 {
		pkgs, loadErr := e.loader.Load(ctx, req.Dir, targets)
		if loadErr != nil {
			return expand.Expansion{}, loadErr
		}

		err = merged.Attach(pkgs)
		if err != nil {
			return expand.Expansion{}, err
		}
	}

	return merged, nil
}

// Run plans, renders and applies one request according to the engine mode.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "generate.Run", trace.WithAttributes(
		attribute.String("dir", req.Dir),
		attribute.String("file", req.File),
		attribute.Int("invocations", len(req.Invocations)),
		attribute.String("mode", e.opts.Mode.String()),
	))
	defer span.End()

	res, err := e.run(ctx, req)

	span.SetAttributes(
		attribute.String("output", res.Output),
		attribute.Int("statements", res.Statements),
		attribute.Bool("changed", res.Changed),
	)

	if len(req.Invocations) > 0 {
		span.SetAttributes(attribute.String("helper", string(req.Invocations[0].Helper)))

		e.metrics.RecordRun(ctx, observability.GenerationStats{
			Helper:     string(req.Invocations[0].Helper),
			Statements: res.Statements,
			Written:    e.opts.Mode == ModeWrite && res.Changed && err == nil,
			Stale:      errors.Is(err, ErrStale),
			Duration:   time.Since(start),
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return res, err
}

func (e *Engine) run(ctx context.Context, req Request) (Result, error) {
	exp, err := e.Plan(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res := Result{Expansion: exp, Statements: len(exp.Statements)}

	var current []byte

	if exp.Helper == directive.HelperExtend {
		if req.File == "" {
			return res, ErrNoSourceFile
		}

		res.Output = e.sourcePath(req)

		current, err = os.ReadFile(res.Output)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", res.Output, err)
		}

		res.Content, res.Changed, err = expand.ApplyExtend(res.Output, current, exp)
		if err != nil {
			return res, err
		}
	} else {
		res.Output = filepath.Join(req.Dir, OutputName(req.File, exp.Scope.PackageName, exp.Helper, e.opts.Suffix))

		res.Content, err = expand.Render(exp, expand.RenderOptions{Header: e.opts.Header, Filename: res.Output})
		if err != nil {
			return res, err
		}

		current, err = os.ReadFile(res.Output)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return res, fmt.Errorf("read %s: %w", res.Output, err)
		}

		res.Changed = !bytes.Equal(current, res.Content)
	}

	if res.Changed && e.opts.Mode != ModeWrite {
		res.Diff = Diff(res.Output, current, res.Content)
	}

	return res, e.apply(ctx, res)
}

func (e *Engine) apply(ctx context.Context, res Result) error {
	switch e.opts.Mode {
	case ModeCheck:
		if res.Changed {
			return fmt.Errorf("%w: %s\n%s", ErrStale, res.Output, res.Diff)
		}
	case ModeDryRun:
	case ModeWrite:
		if !res.Changed {
			e.logger.DebugContext(ctx, "output unchanged", "output", res.Output)

			return nil
		}

		perm := fs.FileMode(filePerm)
		if info, err := os.Stat(res.Output); err == nil {
			perm = info.Mode().Perm()
		}

		err := os.WriteFile(res.Output, res.Content, perm)
		if err != nil {
			return fmt.Errorf("write %s: %w", res.Output, err)
		}

		e.logger.InfoContext(ctx, "file written",
			"output", res.Output, "helper", string(res.Expansion.Helper), "statements", res.Statements)
	}

	return nil
}

func (e *Engine) sourcePath(req Request) string {
	if filepath.IsAbs(req.File) || filepath.Dir(req.File) != "." {
		return req.File
	}

	return filepath.Join(req.Dir, req.File)
}

// OutputName names the generated file of a helper invoked from file, or
// from the package when file is empty.
func OutputName(file, pkg string, helper directive.Helper, suffix string) string {
	stem := pkg
	if file != "" {
		stem = strings.TrimSuffix(filepath.Base(file), ".go")
	}

	return stem + "_" + string(helper) + suffix
}

// Generate scans root and runs every directive found. Directives of the same
// helper in the same file are merged into one output file. Every failure is
// reported; results of successful runs are returned alongside.
func (e *Engine) Generate(ctx context.Context, root string) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "generate.Generate", trace.WithAttributes(
		attribute.String("dir", root),
		attribute.String("mode", e.opts.Mode.String()),
	))
	defer span.End()

	found, err := scan.Dir(ctx, root, scan.Options{Exclude: e.opts.ScanExclude})
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	var (
		results []Result
		errs    []error
	)

	for _, req := range Requests(found) {
		res, runErr := e.Run(ctx, req)
		if runErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.File, runErr))

			continue
		}

		results = append(results, res)
	}

	e.logger.InfoContext(ctx, "generate finished",
		"dir", root, "directives", len(found), "files", len(results), "failed", len(errs))

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}

	return results, err
}

// Requests groups scanned directives into requests, one per file and helper,
// in scan order.
func Requests(found []scan.Directive) []Request {
	type key struct {
		file   string
		helper directive.Helper
	}

	index := make(map[key]int)

	var reqs []Request

	for _, d := range found {
		k := key{file: d.File, helper: d.Invocation.Helper}

		i, ok := index[k]
		if !ok {
			i = len(reqs)
			index[k] = i
			reqs = append(reqs, Request{Dir: filepath.Dir(d.File), File: d.File})
		}

		reqs[i].Invocations = append(reqs[i].Invocations, d.Invocation)
	}

	return reqs
}
