package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/labliq/internal/results"
)

func newSummaryCmd() *cobra.Command {
	var (
		view   viewFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "summary <response.json|->",
		Short: "Print summary statistics",
		Long: `Print the summary of the rows matching the filters. With no filters the
engine's own summary is used when the response has one, filling missing
min and max values from the rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := view.criteria()
			if err != nil {
				return err
			}
			resp, err := readResponse(cmd, args[0])
			if err != nil {
				return err
			}

			var s results.Summary
			if criteria.IsZero() && len(resp.Summary) > 0 {
				s = results.NormalizeSummary(resp.Summary).Resolve(resp.Rows)
			} else {
				s = results.Summarize(criteria.Apply(resp.Rows))
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			case "text":
				return printSummary(cmd.OutOrStdout(), s)
			default:
				return fmt.Errorf("unknown --format %q (text, json)", format)
			}
		},
	}

	view.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	return cmd
}

func printSummary(w io.Writer, s results.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Shipments\t%d\n", s.Count)
	fmt.Fprintf(tw, "Avg final rate\t%.2f\n", s.AvgFinal)
	fmt.Fprintf(tw, "Min final rate\t%.2f\n", s.Min())
	fmt.Fprintf(tw, "Max final rate\t%.2f\n", s.Max())
	fmt.Fprintf(tw, "Total carrier\t%.2f\n", s.TotalCarrier)
	fmt.Fprintf(tw, "Total final\t%.2f\n", s.TotalFinal)
	fmt.Fprintf(tw, "Total savings\t%.2f\n", s.TotalSavings)
	fmt.Fprintf(tw, "Savings\t%.2f%%\n", s.PercentSavings)
	return tw.Flush()
}
