package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/labliq/internal/core"
	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
)

// parseIntParam parses an integer query parameter with a default value.
// Values below minVal fall back to the default.
func parseIntParam(q url.Values, name string, defaultVal, minVal int) int {
	val := q.Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || i < minVal {
		return defaultVal
	}
	return i
}

// parseCriteria reads the filter parameters. The search term is kept as
// typed; unknown savings or error filters are rejected.
func parseCriteria(q url.Values) (results.Criteria, error) {
	c := results.Criteria{
		Search:  q.Get("search"),
		Zone:    strings.TrimSpace(q.Get("zone")),
		Savings: results.SavingsFilter(strings.TrimSpace(q.Get("savings"))),
		Errors:  results.ErrorFilter(strings.TrimSpace(q.Get("errors"))),
	}
	if c.Zone == "" {
		c.Zone = results.ZoneAll
	}

	switch c.Savings {
	case "":
		c.Savings = results.SavingsAll
	case results.SavingsAll, results.SavingsPositive, results.SavingsNegative, results.SavingsZero:
	default:
		return results.Criteria{}, fmt.Errorf("%w: unknown savings filter %q", core.ErrInvalidRequest, c.Savings)
	}

	switch c.Errors {
	case "":
		c.Errors = results.ErrorsAll
	case results.ErrorsAll, results.ErrorsOnly, results.ErrorsNone:
	default:
		return results.Criteria{}, fmt.Errorf("%w: unknown errors filter %q", core.ErrInvalidRequest, c.Errors)
	}
	return c, nil
}

// parseSort reads sort and dir, then applies a header click from toggle.
// The second result reports whether a toggle happened.
func parseSort(q url.Values) (results.SortState, bool, error) {
	state := results.DefaultSort()
	if s := q.Get("sort"); s != "" {
		key, err := results.ParseSortKey(s)
		if err != nil {
			return results.SortState{}, false, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err)
		}
		state = results.SortState{Key: key, Dir: results.ParseDirection(q.Get("dir"))}
	}

	t := q.Get("toggle")
	if t == "" {
		return state, false, nil
	}
	key, err := results.ParseSortKey(t)
	if err != nil {
		return results.SortState{}, false, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err)
	}
	return state.Toggle(key), true, nil
}

// parseViewParams reads a results view from the query string. A sort toggle
// returns to the first page.
func parseViewParams(r *http.Request) (results.ViewParams, error) {
	q := r.URL.Query()

	criteria, err := parseCriteria(q)
	if err != nil {
		return results.ViewParams{}, err
	}
	sort, toggled, err := parseSort(q)
	if err != nil {
		return results.ViewParams{}, err
	}

	page := parseIntParam(q, "page", 1, 1)
	if toggled {
		page = 1
	}
	return results.ViewParams{
		Criteria: criteria,
		Sort:     sort,
		Page:     page,
		PageSize: parseIntParam(q, "page_size", 0, 1),
	}, nil
}

// parseExportParams reads the view filters and sort plus the totals flag.
func parseExportParams(r *http.Request) (core.ExportParams, error) {
	q := r.URL.Query()

	criteria, err := parseCriteria(q)
	if err != nil {
		return core.ExportParams{}, err
	}
	sort, _, err := parseSort(q)
	if err != nil {
		return core.ExportParams{}, err
	}

	totals := strings.TrimSpace(q.Get("totals"))
	return core.ExportParams{
		Criteria: criteria,
		Sort:     sort,
		Totals:   totals == "1" || strings.EqualFold(totals, "true"),
	}, nil
}

func parseHistoryFilter(r *http.Request) store.HistoryFilter {
	q := r.URL.Query()
	return store.HistoryFilter{
		Merchant: strings.TrimSpace(q.Get("merchant")),
		FileID:   strings.TrimSpace(q.Get("file_id")),
		Query:    strings.TrimSpace(q.Get("q")),
		Tag:      strings.TrimSpace(q.Get("tag")),
		Limit:    parseIntParam(q, "limit", store.DefaultHistoryLimit, 1),
		Offset:   parseIntParam(q, "offset", 0, 0),
	}
}
