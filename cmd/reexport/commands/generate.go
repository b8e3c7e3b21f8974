package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/pkg/generate"
)

func newGenerateCommand(opts *globalOptions) *cobra.Command {
	var check, dryRun bool

	cmd := &cobra.Command{
		Use:   "generate [dir]",
		Short: "Run every //reexport: directive under a directory",
		Long: `Scan dir (default ".") for //reexport: directives and regenerate their output.

Directives of the same helper in one file share one generated file named
<file>_<helper><suffix>. Unchanged files are not rewritten.

With --check nothing is written and the command fails, printing a diff, when
any generated file is missing or out of date. With --dry-run the diffs are
printed without failing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			mode, err := modeFromFlags(check, dryRun)
			if err != nil {
				return err
			}

			engine, err := opts.engine(mode)
			if err != nil {
				return err
			}

			var results []generate.Result

			err = opts.observe(cmd, func() error {
				results, err = engine.Generate(cmd.Context(), dir)

				return err
			})

			rep := newReporter(cmd.OutOrStdout(), mode, opts.quiet)
			for _, res := range results {
				rep.result(res)
			}

			if err != nil {
				return err
			}

			rep.summary(results)

			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "fail if any generated file is out of date")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print diffs instead of writing files")

	return cmd
}
