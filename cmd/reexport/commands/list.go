package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/pkg/scan"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatGo    = "go"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List the //reexport: directives under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			found, err := scan.Dir(cmd.Context(), dir, scan.Options{Exclude: opts.cfg.Scan.Exclude})
			if err != nil {
				return err
			}

			switch format {
			case formatTable:
				writeDirectiveTable(cmd.OutOrStdout(), dir, found)

				return nil
			case formatJSON:
				if found == nil {
					found = []scan.Directive{}
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(found)
			default:
				return fmt.Errorf("%w: %q (want table or json)", ErrUnknownFormat, format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table or json")

	return cmd
}

func writeDirectiveTable(out io.Writer, root string, found []scan.Directive) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"File", "Line", "Package", "Invocation"})

	for _, d := range found {
		name := d.File
		if rel, err := filepath.Rel(root, d.File); err == nil {
			name = rel
		}

		tbl.AppendRow(table.Row{name, strconv.Itoa(d.Line), d.Package, d.Invocation.String()})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d directives", len(found))})

	fmt.Fprintln(out, tbl.Render())
}
