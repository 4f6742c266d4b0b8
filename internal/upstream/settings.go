package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ColumnMapping names the source CSV columns holding each shipment field.
type ColumnMapping struct {
	Weight      string `json:"weight"`
	CarrierRate string `json:"carrier_rate"`
	Zone        string `json:"zone,omitempty"`
	DestZip     string `json:"dest_zip,omitempty"`
	OrigZip     string `json:"orig_zip,omitempty"`
}

// Validate reports a missing required column.
func (m ColumnMapping) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Weight) == "" {
		errs = append(errs, errors.New("mapping.weight is required"))
	}
	if strings.TrimSpace(m.CarrierRate) == "" {
		errs = append(errs, errors.New("mapping.carrier_rate is required"))
	}
	return errors.Join(errs...)
}

// Settings are the rate settings applied by the engine. Percentages are
// fractions: 0.10 is ten percent.
type Settings struct {
	WeightUnit       string  `json:"weightUnit"`
	MarkupPct        float64 `json:"markupPct"`
	FuelSurchargePct float64 `json:"fuelSurchargePct"`
	DimDivisor       float64 `json:"dimDivisor"`
	MinMargin        float64 `json:"minMargin"`
	DASSurcharge     float64 `json:"dasSurcharge"`
	EDASSurcharge    float64 `json:"edasSurcharge"`
	RemoteSurcharge  float64 `json:"remoteSurcharge"`
	OriginZip        string  `json:"originZip"`
}

// WeightUnits lists the accepted weight units.
var WeightUnits = []string{"oz", "lb", "lbs", "g", "kg"}

// DefaultSettings returns the settings used when a request omits them.
func DefaultSettings() Settings {
	return Settings{
		WeightUnit:       "oz",
		MarkupPct:        0.10,
		FuelSurchargePct: 0.16,
		DimDivisor:       139,
		MinMargin:        0.5,
		DASSurcharge:     1.98,
		EDASSurcharge:    3.92,
		RemoteSurcharge:  14.15,
	}
}

// MergeSettings overlays the fields present in raw onto the defaults.
// An empty or null raw yields the defaults.
func MergeSettings(raw json.RawMessage) (Settings, error) {
	s := DefaultSettings()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return s, nil
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.WeightUnit = strings.ToLower(strings.TrimSpace(s.WeightUnit))
	s.OriginZip = strings.TrimSpace(s.OriginZip)
	return s, nil
}

// Validate checks unit and range constraints, reporting every violation.
func (s Settings) Validate() error {
	var errs []error

	if !slices.Contains(WeightUnits, s.WeightUnit) {
		errs = append(errs, fmt.Errorf("weightUnit %q must be one of %s", s.WeightUnit, strings.Join(WeightUnits, ", ")))
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"markupPct", s.MarkupPct},
		{"fuelSurchargePct", s.FuelSurchargePct},
		{"minMargin", s.MinMargin},
		{"dasSurcharge", s.DASSurcharge},
		{"edasSurcharge", s.EDASSurcharge},
		{"remoteSurcharge", s.RemoteSurcharge},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative", f.name))
		}
	}
	if s.DimDivisor <= 0 {
		errs = append(errs, errors.New("dimDivisor must be positive"))
	}

	return errors.Join(errs...)
}
