package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
	"github.com/Sumatoshi-tech/reexport/pkg/generate"
)

// helperFlags are shared by the go:generate entry points.
type helperFlags struct {
	dir    string
	file   string
	check  bool
	dryRun bool
}

func newHelperCommands(opts *globalOptions) []*cobra.Command {
	defs := []struct {
		helper directive.Helper
		use    string
		short  string
		args   cobra.PositionalArgs
	}{
		{directive.HelperExpose, "expose [module...]", "Re-export sibling packages into the current package", cobra.ArbitraryArgs},
		{directive.HelperPackage, "package [module...]", "Re-export packages of the parent directory", cobra.ArbitraryArgs},
		{directive.HelperExtend, "extend", "Dot-import the parent package into the invoking file", cobra.NoArgs},
		{directive.HelperBundle, "bundle <path>", "Blank-import every package directly under path", cobra.ExactArgs(1)},
	}

	cmds := make([]*cobra.Command, 0, len(defs))

	for _, def := range defs {
		cmds = append(cmds, newHelperCommand(opts, def.helper, def.use, def.short, def.args))
	}

	return cmds
}

func newHelperCommand(opts *globalOptions, helper directive.Helper, use, short string, args cobra.PositionalArgs) *cobra.Command {
	flags := &helperFlags{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Meant for go:generate lines: the package directory defaults to the working
directory and the invoking file to $GOFILE, both set by "go generate".
Modules may be separate arguments or one comma separated list.`,
		Args: args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHelper(cmd, opts, flags, helper, args)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", ".", "directory of the invoking package")
	cmd.Flags().StringVar(&flags.file, "file", os.Getenv("GOFILE"), "invoking source file (default $GOFILE)")
	cmd.Flags().BoolVar(&flags.check, "check", false, "fail if the generated file is out of date")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the generated source instead of writing it")

	return cmd
}

func runHelper(cmd *cobra.Command, opts *globalOptions, flags *helperFlags, helper directive.Helper, args []string) error {
	inv, err := directive.FromArgs(helper, args)
	if err != nil {
		return err
	}

	mode, err := modeFromFlags(flags.check, flags.dryRun)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", flags.dir, err)
	}

	engine, err := opts.engine(mode)
	if err != nil {
		return err
	}

	file := flags.file
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}

	var res generate.Result

	err = opts.observe(cmd, func() error {
		res, err = engine.Run(cmd.Context(), generate.Request{
			Dir:         dir,
			File:        file,
			Invocations: []directive.Invocation{inv},
		})

		return err
	})
	if err != nil {
		return err
	}

	if mode == generate.ModeDryRun {
		_, err = cmd.OutOrStdout().Write(res.Content)

		return err
	}

	newReporter(cmd.OutOrStdout(), mode, opts.quiet).result(res)

	return nil
}
