package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/rates"
)

type stubRates struct {
	materials map[string]catalog.Material
	profile   *catalog.MarketplaceShippingProfile
	card      *catalog.ShippingRateCard
	rateCents int64
	tierErr   error
	fee       *catalog.MarketplaceFeeRate
	labor     *catalog.LaborSetting
	profits   map[catalog.VariantKey]int64
	lastTier  int64
	lastWt    float64
	transport error
}

func (s *stubRates) ActiveMaterial(_ context.Context, role string, _ time.Time) (catalog.MaterialRoleAssignment, catalog.Material, error) {
	if s.transport != nil {
		return catalog.MaterialRoleAssignment{}, catalog.Material{}, s.transport
	}
	m, ok := s.materials[role]
	if !ok {
		return catalog.MaterialRoleAssignment{}, catalog.Material{}, &rates.NotConfiguredError{Kind: "material assignment", Key: role}
	}
	return catalog.MaterialRoleAssignment{Role: role, MaterialID: m.ID}, m, nil
}

func (s *stubRates) ActiveShippingProfile(_ context.Context, mp catalog.Marketplace, _ int64, _ time.Time) (catalog.MarketplaceShippingProfile, error) {
	if s.profile == nil {
		return catalog.MarketplaceShippingProfile{}, &rates.NotConfiguredError{Kind: "shipping profile", Key: string(mp)}
	}
	return *s.profile, nil
}

func (s *stubRates) RateCard(_ context.Context, id int64) (catalog.ShippingRateCard, error) {
	if s.card == nil || s.card.ID != id {
		return catalog.ShippingRateCard{}, &rates.NotConfiguredError{Kind: "rate card", Key: "card"}
	}
	return *s.card, nil
}

func (s *stubRates) ShippingRate(_ context.Context, cardID int64, weightOz float64, zone string) (catalog.ShippingZoneRate, error) {
	s.lastWt = weightOz
	if s.tierErr != nil {
		return catalog.ShippingZoneRate{}, s.tierErr
	}
	return catalog.ShippingZoneRate{TierID: 11, Zone: zone, RateCents: s.rateCents}, nil
}

func (s *stubRates) TierRate(_ context.Context, cardID, tierID int64, zone string) (catalog.ShippingZoneRate, error) {
	s.lastTier = tierID
	return catalog.ShippingZoneRate{TierID: tierID, Zone: zone, RateCents: s.rateCents + 100}, nil
}

func (s *stubRates) FeeRate(_ context.Context, mp catalog.Marketplace) (catalog.MarketplaceFeeRate, error) {
	if s.fee == nil {
		return catalog.MarketplaceFeeRate{}, &rates.NotConfiguredError{Kind: "marketplace fee rate", Key: string(mp)}
	}
	return *s.fee, nil
}

func (s *stubRates) Labor(context.Context) (catalog.LaborSetting, error) {
	if s.labor == nil {
		return catalog.LaborSetting{}, &rates.NotConfiguredError{Kind: "labor setting", Key: "global"}
	}
	return *s.labor, nil
}

func (s *stubRates) Profit(_ context.Context, v catalog.VariantKey) (catalog.VariantProfitSetting, error) {
	p, ok := s.profits[v]
	if !ok {
		return catalog.VariantProfitSetting{}, &rates.NotConfiguredError{Kind: "profit setting", Key: string(v)}
	}
	return catalog.VariantProfitSetting{VariantKey: v, ProfitCents: p}, nil
}

func configured() *stubRates {
	return &stubRates{
		materials: map[string]catalog.Material{
			catalog.RoleChoiceFabric:  {ID: 1, CostPerSqInCents: 0.4, WeightPerSqInOz: 0.01},
			catalog.RolePremiumFabric: {ID: 2, CostPerSqInCents: 0.9, WeightPerSqInOz: 0.015},
			catalog.RolePadding:       {ID: 3, CostPerSqInCents: 0.25, WeightPerSqInOz: 0.005},
		},
		profile:   &catalog.MarketplaceShippingProfile{ID: 5, Marketplace: catalog.Ebay, Mode: catalog.ShippingCalculated, RateCardID: 9, PricingZone: "5"},
		card:      &catalog.ShippingRateCard{ID: 9, Carrier: "USPS", Name: "Ground Advantage", Active: true},
		rateCents: 900,
		fee:       &catalog.MarketplaceFeeRate{Marketplace: catalog.Ebay, FeeRate: 13.25},
		labor:     &catalog.LaborSetting{HourlyRateCents: 2400, MinutesNoPadding: 30, MinutesWithPadding: 45},
		profits: map[catalog.VariantKey]int64{
			catalog.ChoiceNoPadding:  1200,
			catalog.ChoicePadded:     1500,
			catalog.PremiumNoPadding: 1800,
			catalog.PremiumPadded:    2200,
		},
	}
}

func testModel() catalog.Model {
	return catalog.Model{ID: 42, BaseSKU: "FEN-HR", WidthIn: 20, DepthIn: 10, HeightIn: 15}
}

func TestCalculatorAllVariants(t *testing.T) {
	calc := NewCalculator(configured())

	for _, v := range catalog.VariantKeys {
		t.Run(string(v), func(t *testing.T) {
			res, err := calc.Calculate(context.Background(), Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: v})
			require.NoError(t, err)

			b := res.Breakdown
			assert.Equal(t, b.MaterialCostCents+b.LaborCostCents+b.ShippingCostCents, b.BaseCostCents)
			assert.InDelta(t, b.RetailPriceCents-b.BaseCostCents-b.MarketplaceFeeCents, b.ProfitCents, 1)
			assert.Equal(t, 1100.0, b.SurfaceAreaSqIn)
			assert.Equal(t, 0.1325, b.MarketplaceFeeRate)
			assert.Equal(t, catalog.ShippingCalculated, res.Shipping.Mode)
		})
	}
}

func TestCalculatorPaddedVariantAddsPaddingAndLabor(t *testing.T) {
	src := configured()
	calc := NewCalculator(src)
	ctx := context.Background()

	res, err := calc.Calculate(ctx, Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: catalog.ChoicePadded})
	require.NoError(t, err)

	// 1100 sq in × (0.4 + 0.25)
	assert.Equal(t, int64(715), res.Breakdown.MaterialCostCents)
	assert.Equal(t, 45, res.Breakdown.LaborMinutes)
	assert.Equal(t, int64(1800), res.Breakdown.LaborCostCents)
	assert.Equal(t, []int64{1, 3}, res.MaterialIDs)
	// derived weight 1100 × (0.01 + 0.005)
	assert.InDelta(t, 16.5, src.lastWt, 1e-9)
}

func TestCalculatorWeightOverride(t *testing.T) {
	src := configured()
	m := testModel()
	m.WeightOz = 40

	res, err := NewCalculator(src).Calculate(context.Background(), Request{Model: m, Marketplace: catalog.Ebay, Variant: catalog.PremiumNoPadding})
	require.NoError(t, err)
	assert.Equal(t, 40.0, res.Breakdown.WeightOz)
	assert.Equal(t, 40.0, src.lastWt)
}

func TestCalculatorShippingModes(t *testing.T) {
	ctx := context.Background()

	flat := configured()
	flat.profile.Mode = catalog.ShippingFlat
	flat.profile.FlatShippingCents = 1299
	res, err := NewCalculator(flat).Calculate(ctx, Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: catalog.ChoiceNoPadding})
	require.NoError(t, err)
	assert.Equal(t, int64(1299), res.Breakdown.ShippingCostCents)

	fixed := configured()
	fixed.profile.Mode = catalog.ShippingFixedCell
	fixed.profile.AssumedTierID = 14
	res, err = NewCalculator(fixed).Calculate(ctx, Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: catalog.ChoiceNoPadding})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Breakdown.ShippingCostCents)
	assert.Equal(t, int64(14), fixed.lastTier)
	assert.Equal(t, int64(14), res.Shipping.TierID)
}

func TestCalculatorSetupErrorsCarryDependency(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *stubRates)
		want   Dependency
	}{
		{"no shipping profile", func(s *stubRates) { s.profile = nil }, DepShippingProfile},
		{"profile without card", func(s *stubRates) { s.profile.RateCardID = 0 }, DepRateCard},
		{"inactive card", func(s *stubRates) { s.card.Active = false }, DepRateCard},
		{"no zone", func(s *stubRates) { s.profile.PricingZone = "" }, DepPricingZone},
		{"weight outside tiers", func(s *stubRates) {
			s.tierErr = &rates.MissingShippingRateError{RateCardID: 9, WeightOz: 300, Zone: "5"}
		}, DepRateCard},
		{"fixed cell without tier", func(s *stubRates) { s.profile.Mode = catalog.ShippingFixedCell }, DepRateCard},
		{"no fee", func(s *stubRates) { s.fee = nil }, DepMarketplaceFee},
		{"fee of 100%", func(s *stubRates) { s.fee.FeeRate = 100 }, DepMarketplaceFee},
		{"no profit", func(s *stubRates) { delete(s.profits, catalog.ChoiceNoPadding) }, DepProfitSettings},
		{"no labor", func(s *stubRates) { s.labor = nil }, DepLaborSettings},
		{"no material", func(s *stubRates) { delete(s.materials, catalog.RoleChoiceFabric) }, DepMaterialAssignment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := configured()
			tc.mutate(src)

			_, err := NewCalculator(src).Calculate(context.Background(), Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: catalog.ChoiceNoPadding})
			se, ok := AsSetupError(err)
			require.True(t, ok, "want SetupError, got %v", err)
			assert.Equal(t, tc.want, se.Dependency)
			assert.Equal(t, catalog.Ebay, se.Marketplace)
			assert.NotEmpty(t, se.Guidance())
		})
	}
}

func TestCalculatorTransportErrorIsNotSetupError(t *testing.T) {
	src := configured()
	src.transport = errors.New("disk I/O error")

	_, err := NewCalculator(src).Calculate(context.Background(), Request{Model: testModel(), Marketplace: catalog.Ebay, Variant: catalog.ChoiceNoPadding})
	require.Error(t, err)
	_, ok := AsSetupError(err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, src.transport)
}
