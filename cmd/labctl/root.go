package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		maxBytes int64
	)

	root := &cobra.Command{
		Use:   "labctl",
		Short: "Inspect and export saved rate analysis results",
		Long: `labctl reads a rate engine response saved as JSON, either the full
{"results": [...], "summary": {...}} body or a bare array of rows, and applies
the same filters, sorting and CSV export as the results service.

Examples:
  labctl summary response.json
  labctl summary --zone 5 --format json response.json
  labctl export --sort final_rate --dir desc --totals -o out.csv response.json
  cat response.json | labctl export -`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(cmd.ErrOrStderr(), logLevel, "text")
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().Int64Var(&maxBytes, "max-bytes", upstream.DefaultMaxResponseBytes, "largest response file accepted, in bytes")

	root.AddCommand(newExportCmd())
	root.AddCommand(newSummaryCmd())
	return root
}

// viewFlags are the filter and sort flags shared by every subcommand.
type viewFlags struct {
	search  string
	zone    string
	savings string
	errors  string
	sort    string
	dir     string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.search, "search", "", "case-insensitive substring filter")
	fs.StringVar(&f.zone, "zone", results.ZoneAll, `zone filter ("all" or a zone number)`)
	fs.StringVar(&f.savings, "savings", string(results.SavingsAll), "savings filter (all, positive, negative, zero)")
	fs.StringVar(&f.errors, "errors", string(results.ErrorsAll), "row error filter (all, with_errors, no_errors)")
	fs.StringVar(&f.sort, "sort", string(results.KeyRowIndex), "sort key")
	fs.StringVar(&f.dir, "dir", string(results.Asc), "sort direction (asc, desc)")
}

func (f *viewFlags) criteria() (results.Criteria, error) {
	c := results.Criteria{
		Search:  f.search,
		Zone:    f.zone,
		Savings: results.SavingsFilter(f.savings),
		Errors:  results.ErrorFilter(f.errors),
	}
	switch c.Savings {
	case results.SavingsAll, results.SavingsPositive, results.SavingsNegative, results.SavingsZero:
	default:
		return results.Criteria{}, fmt.Errorf("unknown --savings value %q", f.savings)
	}
	switch c.Errors {
	case results.ErrorsAll, results.ErrorsOnly, results.ErrorsNone:
	default:
		return results.Criteria{}, fmt.Errorf("unknown --errors value %q", f.errors)
	}
	return c, nil
}

func (f *viewFlags) sortState() (results.SortState, error) {
	key, err := results.ParseSortKey(f.sort)
	if err != nil {
		return results.SortState{}, fmt.Errorf("--sort: %w (valid keys: %v)", err, results.SortKeys())
	}
	return results.SortState{Key: key, Dir: results.ParseDirection(f.dir)}, nil
}

// readResponse loads a saved engine response from path, or stdin for "-".
func readResponse(cmd *cobra.Command, path string) (*upstream.Response, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	maxBytes, err := cmd.Flags().GetInt64("max-bytes")
	if err != nil {
		return nil, err
	}
	resp, err := upstream.DecodeResponse(r, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if resp.Warning != "" {
		logging.FromContext(cmd.Context()).Warn("engine warning", "warning", resp.Warning)
	}
	return resp, nil
}
