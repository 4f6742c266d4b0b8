// Package results turns a computed shipment-rate result set into something a
// person can look at and download.
//
// A result set is fetched once per analysis and never mutated. Every operation
// in this package is a pure function over that immutable slice and returns new
// slices, so the same rows can back any number of concurrent views.
//
// # Pipeline
//
// Views are built in a fixed order:
//
//	filtered := Criteria{Search: q, Zone: "5"}.Apply(rows)
//	sorted := SortRows(filtered, KeyFinalRate, Asc)
//	page := Paginate(sorted, 1, 50)
//
// [BuildView] runs the whole chain, clamps the page and reports counts.
// CSV export uses the filtered (optionally sorted) set without pagination, so a
// download contains every row matching the current filters across all pages.
//
// # Input Tolerance
//
// The rate engine has shipped several response shapes. Row fields and summary
// keys are read through explicit alias chains (see row.go and summary.go):
// surcharges may be flat or nested under "surcharges", weight may be "weight"
// or "weight_lbs", and summary counters go by several names. Missing numbers
// default to 0 so sums and totals stay defined.
//
// # Null Ordering
//
// Zone is the only nullable numeric field. Rows with a null zone, and rows with
// an empty zip when sorting by zip, always sort after rows that have a value,
// in both directions.
package results
