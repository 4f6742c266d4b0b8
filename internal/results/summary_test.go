package results

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func floatPtr(f float64) *float64 { return &f }

func TestNormalizeSummary(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Summary
	}{
		{
			name: "nil",
			raw:  nil,
			want: Summary{},
		},
		{
			name: "aliased count and average",
			raw:  map[string]any{"count": 5, "avg_final_rate": 12.3},
			want: Summary{Count: 5, AvgFinal: 12.3},
		},
		{
			name: "engine field names",
			raw: map[string]any{
				"total_shipments":          float64(120),
				"totalSavings":             "$1,045.20",
				"total_current_cost":       5400.5,
				"total_amazon_cost":        4355.3,
				"averageSavingsPercentage": 19.35,
				"min_final_rate":           2.1,
				"max_final_rate":           88,
			},
			want: Summary{
				Count:          120,
				TotalSavings:   1045.2,
				TotalCarrier:   5400.5,
				TotalFinal:     4355.3,
				PercentSavings: 19.35,
				MinFinal:       floatPtr(2.1),
				MaxFinal:       floatPtr(88),
			},
		},
		{
			name: "canonical key wins over alias",
			raw:  map[string]any{"count": 3, "total_shipments": 9},
			want: Summary{Count: 3},
		},
		{
			name: "null and garbage fall through to next alias",
			raw:  map[string]any{"avg_final": nil, "avg_final_rate": "n/a", "avgFinal": json.Number("4.25")},
			want: Summary{AvgFinal: 4.25},
		},
		{
			name: "explicit zero min is kept",
			raw:  map[string]any{"min_final": 0},
			want: Summary{MinFinal: floatPtr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSummary(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeSummary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeSummary_NilResolvesToZero(t *testing.T) {
	got := NormalizeSummary(nil).Resolve(nil)
	want := Summary{MinFinal: floatPtr(0), MaxFinal: floatPtr(0)}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSummary_Resolve(t *testing.T) {
	rows := sampleRows()

	got := NormalizeSummary(map[string]any{"count": 3}).Resolve(rows)
	if got.Min() != 7.5 || got.Max() != 20 {
		t.Errorf("expected min 7.5 max 20, got %v/%v", got.Min(), got.Max())
	}

	kept := NormalizeSummary(map[string]any{"min_final": 1.0, "max_final": 2.0}).Resolve(rows)
	if kept.Min() != 1 || kept.Max() != 2 {
		t.Errorf("expected provided min/max kept, got %v/%v", kept.Min(), kept.Max())
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleRows())
	want := Summary{
		Count:          3,
		AvgFinal:       12.5,
		MinFinal:       floatPtr(7.5),
		MaxFinal:       floatPtr(20),
		TotalSavings:   8.5,
		TotalCarrier:   46,
		TotalFinal:     37.5,
		PercentSavings: 18.48,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_CentRounding(t *testing.T) {
	rows := []Row{
		{RowIndex: 1, CarrierRate: 0.1, FinalRate: 0.1},
		{RowIndex: 2, CarrierRate: 0.2, FinalRate: 0.2},
	}

	got := Summarize(rows)
	if got.TotalCarrier != 0.3 {
		t.Errorf("expected total carrier 0.3, got %v", got.TotalCarrier)
	}
	if got.AvgFinal != 0.15 {
		t.Errorf("expected avg final 0.15, got %v", got.AvgFinal)
	}
}
