package results

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names a sortable row field. Values match the JSON field names.
type SortKey string

const (
	KeyRowIndex        SortKey = "rowIndex"
	KeyWeight          SortKey = "weight"
	KeyZone            SortKey = "zone"
	KeyCarrierRate     SortKey = "carrier_rate"
	KeyBaseRate        SortKey = "base_rate"
	KeyFinalRate       SortKey = "final_rate"
	KeyFuelSurcharge   SortKey = "fuel_surcharge"
	KeyDASSurcharge    SortKey = "das_surcharge"
	KeyEDASSurcharge   SortKey = "edas_surcharge"
	KeyRemoteSurcharge SortKey = "remote_surcharge"
	KeyOtherSurcharge  SortKey = "other_surcharge"
	KeySavings         SortKey = "savings"
	KeySavingsPercent  SortKey = "savings_percent"
	KeyOrigZip         SortKey = "orig_zip"
	KeyDestZip         SortKey = "dest_zip"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// sortValue is one side of a comparison. null values sort last.
type sortValue struct {
	num  float64
	str  string
	null bool
}

type fieldAccessor struct {
	text bool
	get  func(Row) sortValue
}

func numeric(get func(Row) float64) fieldAccessor {
	return fieldAccessor{get: func(r Row) sortValue { return sortValue{num: get(r)} }}
}

func textual(get func(Row) string) fieldAccessor {
	return fieldAccessor{text: true, get: func(r Row) sortValue {
		s := get(r)
		return sortValue{str: s, null: s == ""}
	}}
}

var accessors = map[SortKey]fieldAccessor{
	KeyRowIndex:    numeric(func(r Row) float64 { return float64(r.RowIndex) }),
	KeyWeight:      numeric(func(r Row) float64 { return r.Weight }),
	KeyCarrierRate: numeric(func(r Row) float64 { return r.CarrierRate }),
	KeyBaseRate:    numeric(func(r Row) float64 { return r.BaseRate }),
	KeyFinalRate:   numeric(func(r Row) float64 { return r.FinalRate }),
	KeyZone: {get: func(r Row) sortValue {
		if r.Zone == nil {
			return sortValue{null: true}
		}
		return sortValue{num: float64(*r.Zone)}
	}},
	KeyFuelSurcharge:   numeric(func(r Row) float64 { return r.FuelSurcharge }),
	KeyDASSurcharge:    numeric(func(r Row) float64 { return r.DASSurcharge }),
	KeyEDASSurcharge:   numeric(func(r Row) float64 { return r.EDASSurcharge }),
	KeyRemoteSurcharge: numeric(func(r Row) float64 { return r.RemoteSurcharge }),
	KeyOtherSurcharge:  numeric(func(r Row) float64 { return r.OtherSurcharge }),
	KeySavings:         numeric(func(r Row) float64 { return r.Savings }),
	KeySavingsPercent:  numeric(func(r Row) float64 { return r.SavingsPercent }),
	KeyOrigZip:         textual(func(r Row) string { return r.OrigZip }),
	KeyDestZip:         textual(func(r Row) string { return r.DestZip }),
}

// ErrUnknownSortKey is returned by ParseSortKey for keys that name no column.
var ErrUnknownSortKey = errors.New("unknown sort key")

// ParseSortKey validates a sort key. "weight_lbs" is accepted for weight.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "weight_lbs" {
		return KeyWeight, nil
	}
	key := SortKey(s)
	if _, ok := accessors[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
	return key, nil
}

// ParseDirection returns Desc for "desc" (any case) and Asc otherwise.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// SortKeys lists every sortable key in column order.
func SortKeys() []SortKey {
	return []SortKey{
		KeyRowIndex, KeyWeight, KeyZone, KeyCarrierRate, KeyBaseRate,
		KeySavings, KeySavingsPercent, KeyFuelSurcharge, KeyDASSurcharge,
		KeyEDASSurcharge, KeyRemoteSurcharge, KeyOtherSurcharge, KeyFinalRate,
		KeyOrigZip, KeyDestZip,
	}
}

// SortState is the active column sort of a results view.
type SortState struct {
	Key SortKey   `json:"key"`
	Dir Direction `json:"dir"`
}

// DefaultSort orders rows by their original position.
func DefaultSort() SortState {
	return SortState{Key: KeyRowIndex, Dir: Asc}
}

// Toggle returns the state after a click on the key column header: the active
// column flips direction, any other column becomes the ascending sort.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key {
		if s.Dir == Desc {
			return SortState{Key: key, Dir: Asc}
		}
		return SortState{Key: key, Dir: Desc}
	}
	return SortState{Key: key, Dir: Asc}
}

// orDefault fills an empty state with DefaultSort.
func (s SortState) orDefault() SortState {
	if s.Key == "" {
		return DefaultSort()
	}
	if s.Dir != Desc {
		s.Dir = Asc
	}
	return s
}

// SortRows returns a stably sorted copy of rows. Numbers compare
// arithmetically and zips with an English collator. Null zones and empty zips
// sort last in either direction. An unknown key returns an unsorted copy.
func SortRows(rows []Row, key SortKey, dir Direction) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	acc, ok := accessors[key]
	if !ok {
		return out
	}

	var compareText func(a, b string) int
	if acc.text {
		// Collators keep internal buffers; one per call keeps SortRows safe
		// for concurrent use.
		col := collate.New(language.English)
		compareText = col.CompareString
	}

	slices.SortStableFunc(out, func(a, b Row) int {
		va, vb := acc.get(a), acc.get(b)
		switch {
		case va.null && vb.null:
			return 0
		case va.null:
			return 1
		case vb.null:
			return -1
		}

		var c int
		if acc.text {
			c = compareText(va.str, vb.str)
		} else {
			c = cmp.Compare(va.num, vb.num)
		}
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}
