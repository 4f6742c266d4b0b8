package results

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Summary holds aggregate statistics over a row set in canonical field names.
// MinFinal and MaxFinal are nil until known; call Resolve to fill them from rows.
type Summary struct {
	Count          int      `json:"count"`
	AvgFinal       float64  `json:"avg_final"`
	MinFinal       *float64 `json:"min_final"`
	MaxFinal       *float64 `json:"max_final"`
	TotalSavings   float64  `json:"total_savings"`
	TotalCarrier   float64  `json:"total_carrier"`
	TotalFinal     float64  `json:"total_final"`
	PercentSavings float64  `json:"percent_savings"`
}

// Summary key aliases, tried in order.
var (
	countKeys          = []string{"count", "total_shipments", "total_packages", "totalShipments", "totalPackages"}
	avgFinalKeys       = []string{"avg_final", "avg_final_rate", "avgFinal"}
	minFinalKeys       = []string{"min_final", "min_final_rate"}
	maxFinalKeys       = []string{"max_final", "max_final_rate"}
	totalSavingsKeys   = []string{"total_savings", "totalSavings"}
	totalCarrierKeys   = []string{"total_carrier", "total_current_cost", "total_carrier_rate", "totalCurrentCost"}
	totalFinalKeys     = []string{"total_final", "total_final_rate", "total_amazon_cost", "totalAmazonCost"}
	percentSavingsKeys = []string{"percent_savings", "percentSavings", "averageSavingsPercentage"}
)

// NormalizeSummary maps a summary object with any known key names onto the
// canonical shape. Missing fields default to zero; min/max stay nil. A nil map
// yields the zero summary. It never fails.
func NormalizeSummary(raw map[string]any) Summary {
	s := Summary{
		Count:          int(summaryNumber(raw, countKeys)),
		AvgFinal:       summaryNumber(raw, avgFinalKeys),
		TotalSavings:   summaryNumber(raw, totalSavingsKeys),
		TotalCarrier:   summaryNumber(raw, totalCarrierKeys),
		TotalFinal:     summaryNumber(raw, totalFinalKeys),
		PercentSavings: summaryNumber(raw, percentSavingsKeys),
	}
	if v, ok := lookupSummary(raw, minFinalKeys); ok {
		s.MinFinal = &v
	}
	if v, ok := lookupSummary(raw, maxFinalKeys); ok {
		s.MaxFinal = &v
	}
	return s
}

// Resolve returns a copy of s with unset min/max recomputed from rows.
// An empty row set resolves them to zero.
func (s Summary) Resolve(rows []Row) Summary {
	if s.MinFinal != nil && s.MaxFinal != nil {
		return s
	}
	lo, hi := finalRange(rows)
	if s.MinFinal == nil {
		s.MinFinal = &lo
	}
	if s.MaxFinal == nil {
		s.MaxFinal = &hi
	}
	return s
}

// Min returns MinFinal or 0 when unset.
func (s Summary) Min() float64 {
	if s.MinFinal == nil {
		return 0
	}
	return *s.MinFinal
}

// Max returns MaxFinal or 0 when unset.
func (s Summary) Max() float64 {
	if s.MaxFinal == nil {
		return 0
	}
	return *s.MaxFinal
}

// Summarize computes every summary field from rows. Money values are summed
// as decimals and rounded to cents.
func Summarize(rows []Row) Summary {
	var carrier, final, savings decimal.Decimal
	for _, r := range rows {
		carrier = carrier.Add(toDecimal(r.CarrierRate))
		final = final.Add(toDecimal(r.FinalRate))
		savings = savings.Add(toDecimal(r.Savings))
	}

	s := Summary{
		Count:        len(rows),
		TotalCarrier: carrier.Round(2).InexactFloat64(),
		TotalFinal:   final.Round(2).InexactFloat64(),
		TotalSavings: savings.Round(2).InexactFloat64(),
	}
	if len(rows) > 0 {
		s.AvgFinal = final.Div(decimal.NewFromInt(int64(len(rows)))).Round(2).InexactFloat64()
	}
	if carrier.IsPositive() {
		s.PercentSavings = savings.Div(carrier).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return s.Resolve(rows)
}

func finalRange(rows []Row) (lo, hi float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	lo, hi = rows[0].FinalRate, rows[0].FinalRate
	for _, r := range rows[1:] {
		lo = math.Min(lo, r.FinalRate)
		hi = math.Max(hi, r.FinalRate)
	}
	return lo, hi
}

func summaryNumber(raw map[string]any, keys []string) float64 {
	v, _ := lookupSummary(raw, keys)
	return v
}

func lookupSummary(raw map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := anyNumber(v); ok {
			return f, true
		}
	}
	return 0, false
}

func anyNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		return ParseNumber(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toDecimal converts a float, mapping non-finite values to zero.
func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
