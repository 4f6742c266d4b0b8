package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoData is returned when an export is requested for an empty row set.
var ErrNoData = errors.New("no data to export")

// CSVContentType is the MIME type of exported files.
const CSVContentType = "text/csv"

// CSVHeader is the fixed export column list.
var CSVHeader = []string{
	"Row",
	"Weight",
	"Zone",
	"Carrier Rate",
	"Base Rate",
	"Savings($)",
	"Savings(%)",
	"Fuel Surcharge",
	"DAS Surcharge",
	"EDAS Surcharge",
	"Remote Surcharge",
	"Final Rate",
}

// CSVOptions controls optional export output.
type CSVOptions struct {
	// Totals appends a TOTAL row with column sums.
	Totals bool
}

// ExportFilename returns the download name for an export made at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("shipping_analysis_%s.csv", t.Format(time.DateOnly))
}

// WriteCSV writes rows as CSV to w in the given order. Numeric cells other
// than Row carry exactly two decimals and a null zone is an empty cell.
// Nothing is written when rows is empty.
func WriteCSV(w io.Writer, rows []Row, opts CSVOptions) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var t totals
	for _, r := range rows {
		if err := cw.Write(csvRecord(r)); err != nil {
			return fmt.Errorf("write row %d: %w", r.RowIndex, err)
		}
		t.add(r)
	}

	if opts.Totals {
		if err := cw.Write(t.record()); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRecord(r Row) []string {
	return []string{
		strconv.Itoa(r.RowIndex),
		money(r.Weight),
		zoneText(r.Zone),
		money(r.CarrierRate),
		money(r.BaseRate),
		money(r.Savings),
		money(r.SavingsPercent),
		money(r.FuelSurcharge),
		money(r.DASSurcharge),
		money(r.EDASSurcharge),
		money(r.RemoteSurcharge),
		money(r.FinalRate),
	}
}

func money(v float64) string {
	return toDecimal(v).StringFixed(2)
}

type totals struct {
	weight, carrier, base, savings decimal.Decimal
	fuel, das, edas, remote, final decimal.Decimal
}

func (t *totals) add(r Row) {
	t.weight = t.weight.Add(toDecimal(r.Weight))
	t.carrier = t.carrier.Add(toDecimal(r.CarrierRate))
	t.base = t.base.Add(toDecimal(r.BaseRate))
	t.savings = t.savings.Add(toDecimal(r.Savings))
	t.fuel = t.fuel.Add(toDecimal(r.FuelSurcharge))
	t.das = t.das.Add(toDecimal(r.DASSurcharge))
	t.edas = t.edas.Add(toDecimal(r.EDASSurcharge))
	t.remote = t.remote.Add(toDecimal(r.RemoteSurcharge))
	t.final = t.final.Add(toDecimal(r.FinalRate))
}

func (t *totals) record() []string {
	pct := decimal.Zero
	if t.carrier.IsPositive() {
		pct = t.savings.Div(t.carrier).Mul(decimal.NewFromInt(100))
	}
	return []string{
		"TOTAL",
		t.weight.StringFixed(2),
		"",
		t.carrier.StringFixed(2),
		t.base.StringFixed(2),
		t.savings.StringFixed(2),
		pct.StringFixed(2),
		t.fuel.StringFixed(2),
		t.das.StringFixed(2),
		t.edas.StringFixed(2),
		t.remote.StringFixed(2),
		t.final.StringFixed(2),
	}
}
