package results

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRow_UnmarshalJSON_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Row
	}{
		{
			name: "flat",
			in: `{"rowIndex":1,"weight":2,"zone":5,"carrier_rate":12,"base_rate":8,"final_rate":10,
				"fuel_surcharge":1.28,"das_surcharge":1.98,"edas_surcharge":0,"remote_surcharge":0,
				"other_surcharge":0.5,"savings":2,"savings_percent":16.67,"orig_zip":"98101","dest_zip":"94105"}`,
			want: Row{
				RowIndex: 1, Weight: 2, Zone: ZoneOf(5), CarrierRate: 12, BaseRate: 8, FinalRate: 10,
				FuelSurcharge: 1.28, DASSurcharge: 1.98, OtherSurcharge: 0.5,
				Savings: 2, SavingsPercent: 16.67, OrigZip: "98101", DestZip: "94105",
			},
		},
		{
			name: "nested surcharges and legacy names",
			in: `{"rowIndex":2,"weight_lbs":"3.5","zone":"7","current_rate":"$12.40","base_rate":9,
				"final_rate":11.2,"surcharges":{"fuel":1.1,"das_surcharge":2,"edas":0,"remote":null},
				"savings":-1.2,"savings_percent":-9.68,"destination_zip":60601,"error":["bad zip","no weight"]}`,
			want: Row{
				RowIndex: 2, Weight: 3.5, Zone: ZoneOf(7), CarrierRate: 12.4, BaseRate: 9, FinalRate: 11.2,
				FuelSurcharge: 1.1, DASSurcharge: 2, Savings: -1.2, SavingsPercent: -9.68,
				DestZip: "60601", Errors: "bad zip; no weight",
			},
		},
		{
			name: "flat field beats nested",
			in:   `{"rowIndex":3,"fuel_surcharge":4,"surcharges":{"fuel":9}}`,
			want: Row{RowIndex: 3, FuelSurcharge: 4},
		},
		{
			name: "nulls and missing fields default",
			in:   `{"rowIndex":4,"weight":null,"zone":null,"final_rate":null,"surcharges":null}`,
			want: Row{RowIndex: 4},
		},
		{
			name: "non-integer zone is null",
			in:   `{"rowIndex":5,"zone":"7.5"}`,
			want: Row{RowIndex: 5},
		},
		{
			name: "whole float zone",
			in:   `{"rowIndex":6,"zone":3.0}`,
			want: Row{RowIndex: 6, Zone: ZoneOf(3)},
		},
		{
			name: "surcharges not an object",
			in:   `{"rowIndex":7,"surcharges":"n/a","das":1}`,
			want: Row{RowIndex: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Row
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("row mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRow_UnmarshalJSON_NotObject(t *testing.T) {
	var r Row
	if err := json.Unmarshal([]byte(`[1,2]`), &r); err == nil {
		t.Error("expected error for array input")
	}
}

func TestRow_MarshalCanonical(t *testing.T) {
	in := `{"rowIndex":1,"weight_lbs":2,"surcharges":{"fuel":1.5}}`

	var r Row
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if fields["weight"] != 2.0 || fields["fuel_surcharge"] != 1.5 {
		t.Errorf("expected canonical weight and fuel_surcharge, got %s", out)
	}
	if _, ok := fields["surcharges"]; ok {
		t.Errorf("expected flat shape, got %s", out)
	}
	if fields["zone"] != nil {
		t.Errorf("expected null zone, got %v", fields["zone"])
	}
}

func TestDecodeRows_Indexes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{"all missing", `[{"final_rate":1},{"final_rate":2},{"final_rate":3}]`, []int{1, 2, 3}},
		{"explicit and unique", `[{"rowIndex":4},{"rowIndex":9},{"rowIndex":2}]`, []int{4, 9, 2}},
		{"some missing", `[{"final_rate":1},{"rowIndex":7,"final_rate":2},{"final_rate":3}]`, []int{1, 2, 3}},
		{"missing collides with explicit", `[{"rowIndex":2,"final_rate":1},{"final_rate":2}]`, []int{1, 2}},
		{"duplicate explicit", `[{"rowIndex":5},{"rowIndex":5}]`, []int{1, 2}},
		{"zero and negative", `[{"rowIndex":0},{"rowIndex":-3}]`, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := DecodeRows([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeRows: %v", err)
			}
			if diff := cmp.Diff(tt.want, indexes(rows)); diff != "" {
				t.Errorf("row indexes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndexRows_DoesNotModifyInput(t *testing.T) {
	in := []Row{{RowIndex: 3}, {RowIndex: 3}}
	out := IndexRows(in)
	if in[0].RowIndex != 3 || in[1].RowIndex != 3 {
		t.Errorf("input modified: %+v", in)
	}
	if out[0].RowIndex != 1 || out[1].RowIndex != 2 {
		t.Errorf("got %+v, want indexes 1, 2", out)
	}
}

func TestDecodeRows_Invalid(t *testing.T) {
	if _, err := DecodeRows([]byte(`{"results":[]}`)); err == nil {
		t.Error("expected error for non-array input")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12.5", 12.5, true},
		{" $1,234.50 ", 1234.5, true},
		{"-3", -3, true},
		{"2.5 lbs", 2.5, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
		{"1e999", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
