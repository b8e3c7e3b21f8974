package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/reexport/pkg/generate"
)

// reporter prints one status line per generated file.
type reporter struct {
	out   io.Writer
	mode  generate.Mode
	quiet bool
	base  string
}

func newReporter(out io.Writer, mode generate.Mode, quiet bool) *reporter {
	base, err := os.Getwd()
	if err != nil {
		base = ""
	}

	return &reporter{out: out, mode: mode, quiet: quiet, base: base}
}

func (r *reporter) result(res generate.Result) {
	if r.quiet {
		return
	}

	name := r.rel(res.Output)
	size := humanize.Bytes(uint64(len(res.Content)))

	switch {
	case r.mode == generate.ModeCheck:
		color.New(color.FgGreen).Fprintf(r.out, "up to date %s\n", name)
	case r.mode == generate.ModeDryRun && res.Changed:
		color.New(color.FgYellow).Fprintf(r.out, "would write %s (%d statements, %s)\n", name, res.Statements, size)

		if res.Diff != "" {
			fmt.Fprint(r.out, res.Diff)
		}
	case r.mode == generate.ModeDryRun:
		fmt.Fprintf(r.out, "unchanged %s\n", name)
	case res.Changed:
		color.New(color.FgGreen).Fprintf(r.out, "wrote %s (%d statements, %s)\n", name, res.Statements, size)
	default:
		fmt.Fprintf(r.out, "unchanged %s\n", name)
	}
}

func (r *reporter) summary(results []generate.Result) {
	if r.quiet {
		return
	}

	changed := 0

	var bytes uint64

	for _, res := range results {
		if res.Changed {
			changed++
			bytes += uint64(len(res.Content))
		}
	}

	fmt.Fprintf(r.out, "%d files, %d changed, %s\n", len(results), changed, humanize.Bytes(bytes))
}

func (r *reporter) rel(path string) string {
	if r.base == "" {
		return path
	}

	rel, err := filepath.Rel(r.base, path)
	if err != nil || filepath.IsAbs(rel) {
		return path
	}

	return rel
}
