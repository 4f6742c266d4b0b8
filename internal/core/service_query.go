package core

import (
	"context"
	"io"

	"github.com/JonMunkholm/labliq/internal/results"
)

// ResultView returns one page of an analysis's rows after filtering and
// sorting. The page size is bounded by the service's maximum.
func (s *Service) ResultView(ctx context.Context, id string, p results.ViewParams) (*results.Page, error) {
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	p.PageSize = s.clampPageSize(p.PageSize)
	page := results.BuildView(a.Rows, p)
	return &page, nil
}

func (s *Service) clampPageSize(size int) int {
	if size <= 0 {
		return s.pageSize
	}
	return min(size, s.maxPageSize)
}

// ExportParams select the rows of a CSV export.
type ExportParams struct {
	Criteria results.Criteria
	Sort     results.SortState
	Totals   bool
}

// ExportResults writes the filtered, sorted rows of an analysis as CSV.
// When the filters match nothing it returns results.ErrNoData without
// writing to w.
func (s *Service) ExportResults(ctx context.Context, id string, p ExportParams, w io.Writer) (int, error) {
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return 0, err
	}

	rows := results.ExportRows(a.Rows, p.Criteria, p.Sort)
	if err := results.WriteCSV(w, rows, results.CSVOptions{Totals: p.Totals}); err != nil {
		return 0, err
	}
	return len(rows), nil
}
