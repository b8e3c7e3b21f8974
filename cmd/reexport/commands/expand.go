package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
	"github.com/Sumatoshi-tech/reexport/pkg/expand"
	"github.com/Sumatoshi-tech/reexport/pkg/generate"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// expandReport is the json and yaml form of an expansion.
type expandReport struct {
	Output     string           `json:"output"     yaml:"output"`
	Statements int              `json:"statements" yaml:"statements"`
	Summary    []string         `json:"summary"    yaml:"summary"`
	Expansion  expand.Expansion `json:"expansion"  yaml:"expansion"`
}

func newExpandCommand(opts *globalOptions) *cobra.Command {
	var dir, file, format string

	cmd := &cobra.Command{
		Use:   "expand <invocation>",
		Short: "Print the expansion of one helper invocation without writing it",
		Long: `Expand an invocation written as helper(args), for example

  reexport expand 'expose(models, utils)'
  reexport expand 'bundle("routes")' --format yaml

--format go prints the generated source (the edited file for extend);
json and yaml print the resolved plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatGo, formatJSON, formatYAML:
			default:
				return fmt.Errorf("%w: %q (want go, json or yaml)", ErrUnknownFormat, format)
			}

			inv, err := directive.Parse(args[0])
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", dir, err)
			}

			if file != "" && !filepath.IsAbs(file) {
				file = filepath.Join(abs, file)
			}

			engine, err := opts.engine(generate.ModeDryRun)
			if err != nil {
				return err
			}

			res, err := engine.Run(cmd.Context(), generate.Request{
				Dir:         abs,
				File:        file,
				Invocations: []directive.Invocation{inv},
			})
			if err != nil {
				return err
			}

			report := expandReport{
				Output:     res.Output,
				Statements: res.Statements,
				Summary:    expand.Summary(res.Expansion),
				Expansion:  res.Expansion,
			}

			out := cmd.OutOrStdout()

			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(report)
			case formatYAML:
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)

				err = enc.Encode(report)
				if err != nil {
					return fmt.Errorf("encode yaml: %w", err)
				}

				return enc.Close()
			default:
				_, err = out.Write(res.Content)

				return err
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory of the invoking package")
	cmd.Flags().StringVar(&file, "file", "", "invoking source file; names the output, required by extend")
	cmd.Flags().StringVarP(&format, "format", "f", formatGo, "output format: go, json or yaml")

	return cmd
}
