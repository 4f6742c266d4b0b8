package results

import (
	"strconv"
	"strings"
)

// ZoneAll is the zone filter value that disables zone filtering.
const ZoneAll = "all"

// SavingsFilter restricts rows by the sign of their savings.
type SavingsFilter string

const (
	SavingsAll      SavingsFilter = "all"
	SavingsPositive SavingsFilter = "positive"
	SavingsNegative SavingsFilter = "negative"
	SavingsZero     SavingsFilter = "zero"
)

// ErrorFilter restricts rows by whether the engine reported a row error.
type ErrorFilter string

const (
	ErrorsAll  ErrorFilter = "all"
	ErrorsOnly ErrorFilter = "with_errors"
	ErrorsNone ErrorFilter = "no_errors"
)

// Criteria is the set of user-controlled row predicates. All predicates are
// ANDed. Zero values disable the corresponding predicate.
type Criteria struct {
	Search  string        `json:"search,omitempty"`
	Zone    string        `json:"zone,omitempty"`
	Savings SavingsFilter `json:"savings,omitempty"`
	Errors  ErrorFilter   `json:"errors,omitempty"`
}

// FilterRows keeps rows matching searchTerm and zoneFilter, preserving order.
//
// searchTerm is matched case-insensitively as a substring of the row index,
// weight, carrier rate, final rate and zone. zoneFilter is "all" or an integer
// zone; anything else matches no rows.
func FilterRows(rows []Row, searchTerm, zoneFilter string) []Row {
	return Criteria{Search: searchTerm, Zone: zoneFilter}.Apply(rows)
}

// Apply returns the rows matching every predicate in c, in input order.
// The result is never nil.
func (c Criteria) Apply(rows []Row) []Row {
	match := c.matcher()
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// IsZero reports whether c filters nothing out.
func (c Criteria) IsZero() bool {
	return c.Search == "" &&
		(c.Zone == "" || c.Zone == ZoneAll) &&
		(c.Savings == "" || c.Savings == SavingsAll) &&
		(c.Errors == "" || c.Errors == ErrorsAll)
}

func (c Criteria) matcher() func(Row) bool {
	var preds []func(Row) bool

	if c.Zone != "" && c.Zone != ZoneAll {
		zone, err := strconv.Atoi(strings.TrimSpace(c.Zone))
		if err != nil {
			return func(Row) bool { return false }
		}
		preds = append(preds, func(r Row) bool {
			return r.Zone != nil && *r.Zone == zone
		})
	}

	switch c.Savings {
	case SavingsPositive:
		preds = append(preds, func(r Row) bool { return r.Savings > 0 })
	case SavingsNegative:
		preds = append(preds, func(r Row) bool { return r.Savings < 0 })
	case SavingsZero:
		preds = append(preds, func(r Row) bool { return r.Savings == 0 })
	}

	switch c.Errors {
	case ErrorsOnly:
		preds = append(preds, func(r Row) bool { return r.Errors != "" })
	case ErrorsNone:
		preds = append(preds, func(r Row) bool { return r.Errors == "" })
	}

	if c.Search != "" {
		needle := strings.ToLower(c.Search)
		preds = append(preds, func(r Row) bool { return rowContains(r, needle) })
	}

	return func(r Row) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// rowContains tests each searchable field separately so a match never spans
// two fields.
func rowContains(r Row, needle string) bool {
	fields := [...]string{
		strconv.Itoa(r.RowIndex),
		formatPlain(r.Weight),
		formatPlain(r.CarrierRate),
		formatPlain(r.FinalRate),
		zoneText(r.Zone),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// formatPlain renders a number in its shortest decimal form: 10, 7.5, 0.25.
func formatPlain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func zoneText(z *int) string {
	if z == nil {
		return ""
	}
	return strconv.Itoa(*z)
}
