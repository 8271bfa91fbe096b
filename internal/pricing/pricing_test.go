package pricing

import (
	"errors"
	"testing"
)

func equalCents(t *testing.T, name string, got, want int64) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %d, want %d", name, got, want)
	}
}

func baseInput() Input {
	return Input{
		SurfaceAreaSqIn:          1000,
		MaterialCostPerSqInCents: 0.5,
		LaborMinutes:             30,
		LaborRateCentsPerHour:    2400,
		ShippingCostCents:        850,
		WeightOz:                 22,
		FeeRate:                  0.15,
		TargetProfitCents:        1500,
	}
}

func TestCalculate_LineItems(t *testing.T) {
	result, err := Calculate(baseInput())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	equalCents(t, "material", result.MaterialCostCents, 500)
	equalCents(t, "labor", result.LaborCostCents, 1200)
	equalCents(t, "shipping", result.ShippingCostCents, 850)
	equalCents(t, "raw", result.RawCostCents, 1700)
	equalCents(t, "base", result.BaseCostCents, 2550)
	// (2550 + 1500) / 0.85 = 4764.70...
	equalCents(t, "retail", result.RetailPriceCents, 4765)
	// 4765 * 0.15 = 714.75
	equalCents(t, "fee", result.MarketplaceFeeCents, 715)
	equalCents(t, "profit", result.ProfitCents, 1500)
	equalCents(t, "component delta", result.ComponentDelta(), 0)
}

func TestCalculate_FeeRatePercentAndFractionMatch(t *testing.T) {
	asFraction := baseInput()
	asPercent := baseInput()
	asPercent.FeeRate = 15

	a, err := Calculate(asFraction)
	if err != nil {
		t.Fatalf("Calculate fraction: %v", err)
	}
	b, err := Calculate(asPercent)
	if err != nil {
		t.Fatalf("Calculate percent: %v", err)
	}

	if a != b {
		t.Fatalf("fee_rate 0.15 and 15 differ:\n%+v\n%+v", a, b)
	}
	if a.MarketplaceFeeRate != 0.15 {
		t.Fatalf("normalized fee rate = %v, want 0.15", a.MarketplaceFeeRate)
	}
}

func TestNormalizeFeeRate(t *testing.T) {
	cases := map[float64]float64{
		15:     0.15,
		13.25:  0.1325,
		0.15:   0.15,
		1:      1,
		0:      0,
		100:    1,
		0.0725: 0.0725,
	}
	for stored, want := range cases {
		if got := NormalizeFeeRate(stored); got != want {
			t.Fatalf("NormalizeFeeRate(%v) = %v, want %v", stored, got, want)
		}
	}
}

func TestCalculate_RejectsFeeRateAtOrAboveOneHundredPercent(t *testing.T) {
	for _, stored := range []float64{1, 100, 250, -0.1} {
		in := baseInput()
		in.FeeRate = stored
		if _, err := Calculate(in); !errors.Is(err, ErrFeeRateOutOfRange) {
			t.Fatalf("fee_rate %v: err = %v, want ErrFeeRateOutOfRange", stored, err)
		}
	}
}

func TestCalculate_SurchargeAddsToMaterial(t *testing.T) {
	in := baseInput()
	in.SurchargeCents = 275

	result, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	equalCents(t, "material", result.MaterialCostCents, 775)
	equalCents(t, "base", result.BaseCostCents, 2825)
}

func TestCalculate_ProfitWithinOneCentOfTarget(t *testing.T) {
	for _, fee := range []float64{0, 0.0325, 6.5, 13.25, 15, 0.2999} {
		for _, area := range []float64{333.3, 812.75, 1499.9} {
			for _, target := range []int64{0, 999, 1234, 4001} {
				in := baseInput()
				in.FeeRate = fee
				in.SurfaceAreaSqIn = area
				in.TargetProfitCents = target

				result, err := Calculate(in)
				if err != nil {
					t.Fatalf("Calculate(fee=%v area=%v): %v", fee, area, err)
				}
				if got := result.RetailPriceCents - result.BaseCostCents - result.MarketplaceFeeCents; got != result.ProfitCents {
					t.Fatalf("profit identity broken: %+v", result)
				}
				if d := result.ProfitCents - target; d < -1 || d > 1 {
					t.Fatalf("fee=%v area=%v target=%d: profit %d off by %d", fee, area, target, result.ProfitCents, d)
				}
			}
		}
	}
}

func TestCalculate_LaborRoundsToCents(t *testing.T) {
	in := baseInput()
	in.LaborMinutes = 7
	in.LaborRateCentsPerHour = 2500

	result, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	// 7 * 2500 / 60 = 291.66...
	equalCents(t, "labor", result.LaborCostCents, 292)
}
