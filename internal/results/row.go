package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Row is one shipment's computed rate-comparison record.
// It always encodes to the canonical flat JSON shape.
type Row struct {
	RowIndex        int     `json:"rowIndex"`
	Weight          float64 `json:"weight"`
	Zone            *int    `json:"zone"`
	CarrierRate     float64 `json:"carrier_rate"`
	BaseRate        float64 `json:"base_rate"`
	FinalRate       float64 `json:"final_rate"`
	FuelSurcharge   float64 `json:"fuel_surcharge"`
	DASSurcharge    float64 `json:"das_surcharge"`
	EDASSurcharge   float64 `json:"edas_surcharge"`
	RemoteSurcharge float64 `json:"remote_surcharge"`
	OtherSurcharge  float64 `json:"other_surcharge"`
	Savings         float64 `json:"savings"`
	SavingsPercent  float64 `json:"savings_percent"`
	OrigZip         string  `json:"orig_zip,omitempty"`
	DestZip         string  `json:"dest_zip,omitempty"`
	Errors          string  `json:"errors,omitempty"`
}

// ZoneOf returns a pointer to z, for building rows with a zone.
func ZoneOf(z int) *int {
	return &z
}

// alias names one place a field may live in an engine response.
type alias struct {
	key    string
	nested bool // read from the "surcharges" object instead of the row
}

func flat(key string) alias { return alias{key: key} }

func inner(key string) alias { return alias{key: key, nested: true} }

func chain(a ...alias) []alias { return a }

// Field alias chains, tried in order. The first present, non-null, parseable
// value wins.
var (
	rowIndexChain    = chain(flat("rowIndex"), flat("row_index"))
	weightChain      = chain(flat("weight"), flat("weight_lbs"))
	zoneChain        = chain(flat("zone"))
	carrierRateChain = chain(flat("carrier_rate"), flat("current_rate"))
	baseRateChain    = chain(flat("base_rate"))
	finalRateChain   = chain(flat("final_rate"))
	savingsChain     = chain(flat("savings"))
	savingsPctChain  = chain(flat("savings_percent"))

	fuelChain   = chain(flat("fuel_surcharge"), inner("fuel_surcharge"), inner("fuel"))
	dasChain    = chain(flat("das_surcharge"), inner("das_surcharge"), inner("das"))
	edasChain   = chain(flat("edas_surcharge"), inner("edas_surcharge"), inner("edas"))
	remoteChain = chain(flat("remote_surcharge"), inner("remote_surcharge"), inner("remote"))
	otherChain  = chain(flat("other_surcharge"), inner("other_surcharge"), inner("other"))

	origZipChain = chain(flat("orig_zip"), flat("origin_zip"), flat("from_zip"))
	destZipChain = chain(flat("dest_zip"), flat("destination_zip"), flat("to_zip"))
	errorsChain  = chain(flat("errors"), flat("error"))
)

// rawRow holds the decoded top-level and nested surcharge objects of a row.
type rawRow struct {
	top    map[string]json.RawMessage
	nested map[string]json.RawMessage
}

func (r rawRow) lookup(a alias) (json.RawMessage, bool) {
	src := r.top
	if a.nested {
		src = r.nested
	}
	v, ok := src[a.key]
	if !ok || isJSONNull(v) {
		return nil, false
	}
	return v, true
}

// number returns the first parseable number along the chain, or 0.
func (r rawRow) number(c []alias) float64 {
	if v, ok := r.optNumber(c); ok {
		return v
	}
	return 0
}

func (r rawRow) optNumber(c []alias) (float64, bool) {
	for _, a := range c {
		raw, ok := r.lookup(a)
		if !ok {
			continue
		}
		if v, ok := parseJSONNumber(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func (r rawRow) text(c []alias) string {
	for _, a := range c {
		raw, ok := r.lookup(a)
		if !ok {
			continue
		}
		if s, ok := parseJSONText(raw); ok {
			return s
		}
	}
	return ""
}

// zone returns nil unless the value is an integer.
func (r rawRow) zone() *int {
	for _, a := range zoneChain {
		raw, ok := r.lookup(a)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			z, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil
			}
			return ZoneOf(z)
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return ZoneOf(int(f))
		}
		return nil
	}
	return nil
}

// UnmarshalJSON accepts both the flat and the nested-surcharge row shapes.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw rawRow
	if err := json.Unmarshal(data, &raw.top); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if s, ok := raw.top["surcharges"]; ok && !isJSONNull(s) {
		// A surcharges value that is not an object is ignored.
		_ = json.Unmarshal(s, &raw.nested)
	}

	*r = Row{
		RowIndex:        int(raw.number(rowIndexChain)),
		Weight:          raw.number(weightChain),
		Zone:            raw.zone(),
		CarrierRate:     raw.number(carrierRateChain),
		BaseRate:        raw.number(baseRateChain),
		FinalRate:       raw.number(finalRateChain),
		FuelSurcharge:   raw.number(fuelChain),
		DASSurcharge:    raw.number(dasChain),
		EDASSurcharge:   raw.number(edasChain),
		RemoteSurcharge: raw.number(remoteChain),
		OtherSurcharge:  raw.number(otherChain),
		Savings:         raw.number(savingsChain),
		SavingsPercent:  raw.number(savingsPctChain),
		OrigZip:         raw.text(origZipChain),
		DestZip:         raw.text(destZipChain),
		Errors:          raw.text(errorsChain),
	}
	return nil
}

// DecodeRows decodes a JSON array of rows and makes their indexes unique
// with IndexRows.
func DecodeRows(data []byte) ([]Row, error) {
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return IndexRows(rows), nil
}

// IndexRows returns a copy of rows with a unique RowIndex on every row. The
// engine's indexes are kept when all of them are positive and distinct;
// otherwise every row is renumbered with its 1-based position. The input
// slice is not modified.
func IndexRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	if hasUniqueIndexes(out) {
		return out
	}
	for i := range out {
		out[i].RowIndex = i + 1
	}
	return out
}

func hasUniqueIndexes(rows []Row) bool {
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r.RowIndex <= 0 {
			return false
		}
		if _, dup := seen[r.RowIndex]; dup {
			return false
		}
		seen[r.RowIndex] = struct{}{}
	}
	return true
}

// nonNumericRegex strips currency symbols, separators and stray text.
var nonNumericRegex = regexp.MustCompile(`[^0-9.eE+-]+`)

// ParseNumber parses a user- or engine-provided number leniently.
// "$1,234.50" parses as 1234.5. Non-finite and unparseable values report false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = nonNumericRegex.ReplaceAllString(s, "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseJSONNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseNumber(s)
	}
	return 0, false
}

// parseJSONText accepts strings, numbers (zip codes sometimes arrive numeric)
// and string arrays (joined with "; ").
func parseJSONText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; "), true
	}
	return "", false
}

func isJSONNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
