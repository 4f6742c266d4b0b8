package results

// DefaultPageSize is used when a view asks for a non-positive page size.
const DefaultPageSize = 50

// Paginate returns the 1-indexed page of rows: the slice
// [(page-1)*pageSize, page*pageSize). Pages past the end, page < 1 and
// pageSize < 1 yield an empty slice. Callers clamp page themselves.
func Paginate(rows []Row, page, pageSize int) []Row {
	if page < 1 || pageSize < 1 {
		return []Row{}
	}
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []Row{}
	}
	end := min(start+pageSize, len(rows))

	out := make([]Row, end-start)
	copy(out, rows[start:end])
	return out
}

// PageCount returns ceil(total/pageSize), or 0 for a non-positive page size.
func PageCount(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage limits page to [1, PageCount(total, pageSize)]. An empty set has
// a single, empty page 1.
func ClampPage(page, total, pageSize int) int {
	pages := max(PageCount(total, pageSize), 1)
	return min(max(page, 1), pages)
}

// ViewParams are the user-controlled parameters of a results view.
type ViewParams struct {
	Criteria Criteria
	Sort     SortState
	Page     int
	PageSize int
}

// Page is one screen of a results view.
type Page struct {
	Rows         []Row     `json:"rows"`
	Page         int       `json:"page"`
	PageSize     int       `json:"page_size"`
	TotalPages   int       `json:"total_pages"`
	TotalRows    int       `json:"total_rows"`
	FilteredRows int       `json:"filtered_rows"`
	Sort         SortState `json:"sort"`
	Criteria     Criteria  `json:"criteria"`
	Summary      Summary   `json:"summary"`
}

// BuildView runs filter, sort, clamp and paginate over rows. Summary covers
// the filtered set, not just the page.
func BuildView(rows []Row, p ViewParams) Page {
	size := p.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	sortState := p.Sort.orDefault()

	filtered := p.Criteria.Apply(rows)
	sorted := SortRows(filtered, sortState.Key, sortState.Dir)
	page := ClampPage(p.Page, len(sorted), size)

	return Page{
		Rows:         Paginate(sorted, page, size),
		Page:         page,
		PageSize:     size,
		TotalPages:   PageCount(len(sorted), size),
		TotalRows:    len(rows),
		FilteredRows: len(sorted),
		Sort:         sortState,
		Criteria:     p.Criteria,
		Summary:      Summarize(filtered),
	}
}

// ExportRows returns the rows a CSV export of the view contains: the filtered
// set in view order, across all pages.
func ExportRows(rows []Row, c Criteria, s SortState) []Row {
	s = s.orDefault()
	return SortRows(c.Apply(rows), s.Key, s.Dir)
}
