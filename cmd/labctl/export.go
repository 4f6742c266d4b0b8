package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/results"
)

func newExportCmd() *cobra.Command {
	var (
		view   viewFlags
		output string
		totals bool
	)

	cmd := &cobra.Command{
		Use:   "export <response.json|->",
		Short: "Write the filtered, sorted rows as CSV",
		Long: `Write every row matching the filters, in sort order, as CSV. Without
--output the CSV goes to stdout; --output with a directory writes the
service's default file name into it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := view.criteria()
			if err != nil {
				return err
			}
			sortState, err := view.sortState()
			if err != nil {
				return err
			}
			resp, err := readResponse(cmd, args[0])
			if err != nil {
				return err
			}

			rows := results.ExportRows(resp.Rows, criteria, sortState)

			// Build in memory so an empty export leaves no file behind.
			var buf bytes.Buffer
			if err := results.WriteCSV(&buf, rows, results.CSVOptions{Totals: totals}); err != nil {
				return err
			}

			dest, err := writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
			if err != nil {
				return err
			}
			logging.FromContext(cmd.Context()).Info("export written",
				"rows", len(rows),
				"of", len(resp.Rows),
				"dest", dest,
			)
			return nil
		},
	}

	view.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory (default stdout)")
	cmd.Flags().BoolVar(&totals, "totals", false, "append a TOTAL row")
	return cmd
}

// writeOutput writes data to stdout, a file, or a directory using the
// default export file name. It returns where the data went.
func writeOutput(stdout io.Writer, output string, data []byte) (string, error) {
	if output == "" || output == "-" {
		_, err := stdout.Write(data)
		return "stdout", err
	}

	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		output = fmt.Sprintf("%s%c%s", output, os.PathSeparator, results.ExportFilename(time.Now()))
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return output, nil
}
