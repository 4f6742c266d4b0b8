package upstream

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeSettings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(*Settings)
	}{
		{"empty", "", func(*Settings) {}},
		{"null", "null", func(*Settings) {}},
		{"partial", `{"weightUnit":" LB ","markupPct":0.2}`, func(s *Settings) {
			s.WeightUnit = "lb"
			s.MarkupPct = 0.2
		}},
		{"origin zip", `{"originZip":" 46307 "}`, func(s *Settings) { s.OriginZip = "46307" }},
		{"unknown keys ignored", `{"discountPercent":5}`, func(*Settings) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeSettings(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("MergeSettings: %v", err)
			}
			want := DefaultSettings()
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("settings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeSettings_Invalid(t *testing.T) {
	if _, err := MergeSettings(json.RawMessage(`{"markupPct":"ten"}`)); err == nil {
		t.Error("expected error for string markup")
	}
}

func TestSettings_Validate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, unit := range WeightUnits {
		s := DefaultSettings()
		s.WeightUnit = unit
		if err := s.Validate(); err != nil {
			t.Errorf("unit %q rejected: %v", unit, err)
		}
	}

	s := DefaultSettings()
	s.WeightUnit = "stone"
	s.DimDivisor = 0
	s.FuelSurchargePct = -0.1

	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"weightUnit", "dimDivisor", "fuelSurchargePct"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestColumnMapping_Validate(t *testing.T) {
	if err := (ColumnMapping{Weight: "w", CarrierRate: "r"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := (ColumnMapping{Weight: " ", Zone: "z"}).Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "mapping.weight") || !strings.Contains(err.Error(), "mapping.carrier_rate") {
		t.Errorf("expected both columns reported: %v", err)
	}
}
