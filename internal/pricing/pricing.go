package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrFeeRateOutOfRange is returned when a normalized fee rate leaves no room
// for a finite retail price.
var ErrFeeRateOutOfRange = errors.New("marketplace fee rate must be at least 0% and below 100%")

// Input represents the resolved, model-level inputs of one price calculation.
type Input struct {
	SurfaceAreaSqIn          float64
	MaterialCostPerSqInCents float64
	SurchargeCents           int64
	LaborMinutes             int
	LaborRateCentsPerHour    int64
	ShippingCostCents        int64
	WeightOz                 float64
	FeeRate                  float64
	TargetProfitCents        int64
}

// Breakdown contains every line item of the calculation, in integer cents, plus
// the costing metadata it was computed from.
type Breakdown struct {
	MaterialCostCents   int64 `json:"material_cost_cents"`
	LaborCostCents      int64 `json:"labor_cost_cents"`
	ShippingCostCents   int64 `json:"shipping_cost_cents"`
	RawCostCents        int64 `json:"raw_cost_cents"`
	BaseCostCents       int64 `json:"base_cost_cents"`
	RetailPriceCents    int64 `json:"retail_price_cents"`
	MarketplaceFeeCents int64 `json:"marketplace_fee_cents"`
	ProfitCents         int64 `json:"profit_cents"`

	WeightOz                 float64 `json:"weight_oz"`
	SurfaceAreaSqIn          float64 `json:"surface_area_sq_in"`
	MaterialCostPerSqInCents float64 `json:"material_cost_per_sq_in_cents"`
	LaborMinutes             int     `json:"labor_minutes"`
	LaborRateCentsPerHour    int64   `json:"labor_rate_cents_per_hour"`
	MarketplaceFeeRate       float64 `json:"marketplace_fee_rate"`
}

var (
	hundred = decimal.NewFromInt(100)
	sixty   = decimal.NewFromInt(60)
	one     = decimal.NewFromInt(1)
)

// NormalizeFeeRate converts a stored fee rate to a fraction. Values above 1 are
// percentage points (15 means 15%); values up to 1 are already fractions.
func NormalizeFeeRate(stored float64) float64 {
	return normalizeFee(stored).InexactFloat64()
}

func normalizeFee(stored float64) decimal.Decimal {
	rate := decimal.NewFromFloat(stored)
	if rate.GreaterThan(one) {
		return rate.Div(hundred)
	}
	return rate
}

func cents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Calculate computes the cost breakdown and the retail price that yields the
// target profit after the marketplace fee.
//
// base = material + labor + shipping; the fee is charged on retail, so
// retail = (base + profit) / (1 - fee). Each currency line is rounded half away
// from zero to cents, and profit is the exact remainder of the rounded lines.
func Calculate(in Input) (Breakdown, error) {
	fee := normalizeFee(in.FeeRate)
	if fee.IsNegative() || !fee.LessThan(one) {
		return Breakdown{}, ErrFeeRateOutOfRange
	}

	material := cents(decimal.NewFromFloat(in.SurfaceAreaSqIn).Mul(decimal.NewFromFloat(in.MaterialCostPerSqInCents))) + in.SurchargeCents
	labor := cents(decimal.NewFromInt(int64(in.LaborMinutes)).Mul(decimal.NewFromInt(in.LaborRateCentsPerHour)).Div(sixty))
	raw := material + labor
	base := raw + in.ShippingCostCents

	retail := cents(decimal.NewFromInt(base + in.TargetProfitCents).Div(one.Sub(fee)))
	feeCents := cents(decimal.NewFromInt(retail).Mul(fee))

	return Breakdown{
		MaterialCostCents:        material,
		LaborCostCents:           labor,
		ShippingCostCents:        in.ShippingCostCents,
		RawCostCents:             raw,
		BaseCostCents:            base,
		RetailPriceCents:         retail,
		MarketplaceFeeCents:      feeCents,
		ProfitCents:              retail - base - feeCents,
		WeightOz:                 in.WeightOz,
		SurfaceAreaSqIn:          in.SurfaceAreaSqIn,
		MaterialCostPerSqInCents: in.MaterialCostPerSqInCents,
		LaborMinutes:             in.LaborMinutes,
		LaborRateCentsPerHour:    in.LaborRateCentsPerHour,
		MarketplaceFeeRate:       fee.InexactFloat64(),
	}, nil
}

// ComponentDelta returns base cost minus the sum of its components. A
// breakdown from Calculate always yields zero; other values flag data that was
// written outside this package.
func (b Breakdown) ComponentDelta() int64 {
	return b.BaseCostCents - (b.MaterialCostCents + b.LaborCostCents + b.ShippingCostCents)
}
