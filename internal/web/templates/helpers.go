// Package templates renders the HTMX fragments served by the web package.
// The components are written in templ; run `templ generate` after editing a
// .templ file and commit the generated _templ.go alongside it.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"net/url"
	"strconv"

	"github.com/JonMunkholm/labliq/internal/results"
)

// column is one results table column.
type column struct {
	Label string
	Key   results.SortKey
	Cell  func(results.Row) string
}

var columns = []column{
	{"Row", results.KeyRowIndex, func(r results.Row) string { return strconv.Itoa(r.RowIndex) }},
	{"Weight", results.KeyWeight, func(r results.Row) string { return fixed(r.Weight) }},
	{"Zone", results.KeyZone, func(r results.Row) string {
		if r.Zone == nil {
			return ""
		}
		return strconv.Itoa(*r.Zone)
	}},
	{"Carrier Rate", results.KeyCarrierRate, func(r results.Row) string { return money(r.CarrierRate) }},
	{"Base Rate", results.KeyBaseRate, func(r results.Row) string { return money(r.BaseRate) }},
	{"Savings", results.KeySavings, func(r results.Row) string { return money(r.Savings) }},
	{"Savings %", results.KeySavingsPercent, func(r results.Row) string { return fixed(r.SavingsPercent) + "%" }},
	{"Final Rate", results.KeyFinalRate, func(r results.Row) string { return money(r.FinalRate) }},
	{"Dest ZIP", results.KeyDestZip, func(r results.Row) string { return r.DestZip }},
}

func fixed(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func money(v float64) string {
	if v < 0 {
		return "-$" + fixed(-v)
	}
	return "$" + fixed(v)
}

// viewURL rebuilds the fragment URL for page with the current view state.
// A non-empty extraKey adds one more query parameter.
func viewURL(basePath string, page *results.Page, n int, extraKey, extraVal string) string {
	q := url.Values{}
	c := page.Criteria
	if c.Search != "" {
		q.Set("search", c.Search)
	}
	if c.Zone != "" && c.Zone != results.ZoneAll {
		q.Set("zone", c.Zone)
	}
	if c.Savings != "" && c.Savings != results.SavingsAll {
		q.Set("savings", string(c.Savings))
	}
	if c.Errors != "" && c.Errors != results.ErrorsAll {
		q.Set("errors", string(c.Errors))
	}
	q.Set("sort", string(page.Sort.Key))
	q.Set("dir", string(page.Sort.Dir))
	q.Set("page", strconv.Itoa(n))
	q.Set("page_size", strconv.Itoa(page.PageSize))
	if extraKey != "" {
		q.Set(extraKey, extraVal)
	}
	return basePath + "?" + q.Encode()
}

func sortIndicator(s results.SortState, key results.SortKey) string {
	if s.Key != key {
		return ""
	}
	if s.Dir == results.Desc {
		return " ▼"
	}
	return " ▲"
}
