package snapshot

import "math"

// Direction describes how a field moved between two records.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
	Change   Direction = "change"
)

// FieldDiff is one field that differs between two records.
type FieldDiff struct {
	Field     string    `json:"field_name"`
	OldValue  any       `json:"old_value"`
	NewValue  any       `json:"new_value"`
	Delta     *float64  `json:"delta,omitempty"`
	Direction Direction `json:"direction"`
}

const floatTolerance = 1e-9

type numericField struct {
	name string
	get  func(Record) float64
}

var numericFields = []numericField{
	{"raw_cost_cents", func(r Record) float64 { return float64(r.RawCostCents) }},
	{"base_cost_cents", func(r Record) float64 { return float64(r.BaseCostCents) }},
	{"retail_price_cents", func(r Record) float64 { return float64(r.RetailPriceCents) }},
	{"marketplace_fee_cents", func(r Record) float64 { return float64(r.MarketplaceFeeCents) }},
	{"profit_cents", func(r Record) float64 { return float64(r.ProfitCents) }},
	{"material_cost_cents", func(r Record) float64 { return float64(r.MaterialCostCents) }},
	{"shipping_cost_cents", func(r Record) float64 { return float64(r.ShippingCostCents) }},
	{"labor_cost_cents", func(r Record) float64 { return float64(r.LaborCostCents) }},
	{"weight_oz", func(r Record) float64 { return r.WeightOz }},
	{"surface_area_sq_in", func(r Record) float64 { return r.SurfaceAreaSqIn }},
	{"material_cost_per_sq_in_cents", func(r Record) float64 { return r.MaterialCostPerSqInCents }},
	{"labor_minutes", func(r Record) float64 { return float64(r.LaborMinutes) }},
	{"labor_rate_cents_per_hour", func(r Record) float64 { return float64(r.LaborRateCentsPerHour) }},
	{"marketplace_fee_rate", func(r Record) float64 { return r.MarketplaceFeeRate }},
}

// Diff lists every pricing field that differs from older to newer. Unchanged
// fields are omitted. Identifier and text fields report Change with no delta.
func Diff(older, newer Record) []FieldDiff {
	diffs := make([]FieldDiff, 0)

	for _, f := range numericFields {
		oldV, newV := f.get(older), f.get(newer)
		delta := newV - oldV
		if math.Abs(delta) <= floatTolerance {
			continue
		}
		dir := Increase
		if delta < 0 {
			dir = Decrease
		}
		diffs = append(diffs, FieldDiff{Field: f.name, OldValue: oldV, NewValue: newV, Delta: &delta, Direction: dir})
	}

	if older.ShippingMode != newer.ShippingMode {
		diffs = append(diffs, FieldDiff{Field: "shipping_mode", OldValue: older.ShippingMode, NewValue: newer.ShippingMode, Direction: Change})
	}
	if older.RateCardID != newer.RateCardID {
		diffs = append(diffs, FieldDiff{Field: "rate_card_id", OldValue: older.RateCardID, NewValue: newer.RateCardID, Direction: Change})
	}
	if older.PricingZone != newer.PricingZone {
		diffs = append(diffs, FieldDiff{Field: "pricing_zone", OldValue: older.PricingZone, NewValue: newer.PricingZone, Direction: Change})
	}

	return diffs
}
