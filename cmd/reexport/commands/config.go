package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/pkg/config"
)

// ErrConfigInvalid is returned by config validate when the file has problems.
var ErrConfigInvalid = errors.New("configuration is invalid")

func newConfigCommand(_ *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect reexport configuration",
	}

	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file against the reexport schema",
		Long: `Validate a configuration file (default ./` + config.FileName + `) against the
embedded JSON schema, then check the values the schema cannot express.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}

			out := cmd.OutOrStdout()

			problems, err := config.ValidateFile(path)
			if err != nil {
				return err
			}

			if len(problems) > 0 {
				color.New(color.FgRed).Fprintf(out, "%s is invalid\n", path)

				for _, p := range problems {
					if p.Value != nil {
						color.New(color.FgRed).Fprintf(out, "  - %s: %s (got %v)\n", p.Field, p.Description, p.Value)
					} else {
						color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", p.Field, p.Description)
					}
				}

				return fmt.Errorf("%w: %d problems in %s", ErrConfigInvalid, len(problems), path)
			}

			_, err = config.LoadConfig(path)
			if err != nil {
				color.New(color.FgRed).Fprintf(out, "%s is invalid\n  - %v\n", path, err)

				return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
			}

			color.New(color.FgGreen).Fprintf(out, "%s is valid\n", path)

			return nil
		},
	}
}
