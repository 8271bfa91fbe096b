package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
)

// RateSource resolves the configuration a calculation needs. *rates.Resolver
// implements it.
type RateSource interface {
	ActiveMaterial(ctx context.Context, role string, asOf time.Time) (catalog.MaterialRoleAssignment, catalog.Material, error)
	ActiveShippingProfile(ctx context.Context, mp catalog.Marketplace, equipmentTypeID int64, asOf time.Time) (catalog.MarketplaceShippingProfile, error)
	RateCard(ctx context.Context, id int64) (catalog.ShippingRateCard, error)
	ShippingRate(ctx context.Context, rateCardID int64, weightOz float64, zone string) (catalog.ShippingZoneRate, error)
	TierRate(ctx context.Context, rateCardID, tierID int64, zone string) (catalog.ShippingZoneRate, error)
	FeeRate(ctx context.Context, mp catalog.Marketplace) (catalog.MarketplaceFeeRate, error)
	Labor(ctx context.Context) (catalog.LaborSetting, error)
	Profit(ctx context.Context, v catalog.VariantKey) (catalog.VariantProfitSetting, error)
}

// Request identifies one calculation.
type Request struct {
	Model       catalog.Model
	Marketplace catalog.Marketplace
	Variant     catalog.VariantKey
	// SurchargeCents is a flat colour surcharge added into material cost.
	SurchargeCents int64
	AsOf           time.Time
}

// Shipping records how the shipping line was derived.
type Shipping struct {
	Mode        catalog.ShippingMode `json:"shipping_mode"`
	RateCardID  int64                `json:"rate_card_id,omitempty"`
	TierID      int64                `json:"tier_id,omitempty"`
	PricingZone string               `json:"pricing_zone,omitempty"`
}

// Result groups the full pricing output.
type Result struct {
	Breakdown   Breakdown `json:"breakdown"`
	Shipping    Shipping  `json:"shipping"`
	MaterialIDs []int64   `json:"material_ids"`
}

// Calculator turns a model, marketplace and variant into a priced breakdown.
type Calculator struct {
	rates RateSource
}

// NewCalculator returns a Calculator resolving configuration through rs.
func NewCalculator(rs RateSource) *Calculator {
	return &Calculator{rates: rs}
}

// Calculate resolves every input for req and prices it. Missing configuration
// is returned as *SetupError; storage failures are returned unchanged.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	if req.AsOf.IsZero() {
		req.AsOf = time.Now().UTC()
	}

	area := req.Model.SurfaceArea()
	var (
		perSqIn     float64
		weightPerSq float64
		materialIDs []int64
	)
	for _, role := range req.Variant.CostingRoles() {
		_, material, err := c.rates.ActiveMaterial(ctx, role, req.AsOf)
		if err != nil {
			return Result{}, setup(err, DepMaterialAssignment, req)
		}
		perSqIn += material.CostPerSqInCents
		weightPerSq += material.WeightPerSqInOz
		materialIDs = append(materialIDs, material.ID)
	}

	weight := req.Model.WeightOz
	if weight <= 0 {
		weight = area * weightPerSq
	}

	labor, err := c.rates.Labor(ctx)
	if err != nil {
		return Result{}, setup(err, DepLaborSettings, req)
	}

	shipping, shippingCents, err := c.shipping(ctx, req, weight)
	if err != nil {
		return Result{}, err
	}

	fee, err := c.rates.FeeRate(ctx, req.Marketplace)
	if err != nil {
		return Result{}, setup(err, DepMarketplaceFee, req)
	}

	profit, err := c.rates.Profit(ctx, req.Variant)
	if err != nil {
		return Result{}, setup(err, DepProfitSettings, req)
	}

	breakdown, err := Calculate(Input{
		SurfaceAreaSqIn:          area,
		MaterialCostPerSqInCents: perSqIn,
		SurchargeCents:           req.SurchargeCents,
		LaborMinutes:             labor.Minutes(req.Variant.Padded()),
		LaborRateCentsPerHour:    labor.HourlyRateCents,
		ShippingCostCents:        shippingCents,
		WeightOz:                 weight,
		FeeRate:                  fee.FeeRate,
		TargetProfitCents:        profit.ProfitCents,
	})
	if err != nil {
		return Result{}, setup(fmt.Errorf("fee rate %v: %w", fee.FeeRate, err), DepMarketplaceFee, req)
	}

	return Result{Breakdown: breakdown, Shipping: shipping, MaterialIDs: materialIDs}, nil
}

func (c *Calculator) shipping(ctx context.Context, req Request, weightOz float64) (Shipping, int64, error) {
	profile, err := c.rates.ActiveShippingProfile(ctx, req.Marketplace, req.Model.EquipmentTypeID, req.AsOf)
	if err != nil {
		return Shipping{}, 0, setup(err, DepShippingProfile, req)
	}

	info := Shipping{Mode: profile.Mode, RateCardID: profile.RateCardID, PricingZone: profile.PricingZone}
	if info.Mode == "" {
		info.Mode = catalog.ShippingCalculated
	}

	switch info.Mode {
	case catalog.ShippingFlat:
		return info, profile.FlatShippingCents, nil

	case catalog.ShippingCalculated, catalog.ShippingFixedCell:
		if profile.RateCardID == 0 {
			return info, 0, missingSetup(DepRateCard, req, fmt.Sprintf("shipping profile %d has no rate card", profile.ID))
		}
		card, err := c.rates.RateCard(ctx, profile.RateCardID)
		if err != nil {
			return info, 0, setup(err, DepRateCard, req)
		}
		if !card.Active {
			return info, 0, missingSetup(DepRateCard, req, fmt.Sprintf("rate card %d is inactive", card.ID))
		}
		if profile.PricingZone == "" {
			return info, 0, missingSetup(DepPricingZone, req, fmt.Sprintf("shipping profile %d has no pricing zone", profile.ID))
		}

		var rate catalog.ShippingZoneRate
		if info.Mode == catalog.ShippingFixedCell {
			if profile.AssumedTierID == 0 {
				return info, 0, missingSetup(DepRateCard, req, fmt.Sprintf("shipping profile %d has no assumed tier", profile.ID))
			}
			rate, err = c.rates.TierRate(ctx, card.ID, profile.AssumedTierID, profile.PricingZone)
		} else {
			rate, err = c.rates.ShippingRate(ctx, card.ID, weightOz, profile.PricingZone)
		}
		if err != nil {
			return info, 0, setup(err, DepRateCard, req)
		}
		info.TierID = rate.TierID
		return info, rate.RateCents, nil
	}

	return info, 0, missingSetup(DepShippingProfile, req, fmt.Sprintf("shipping profile %d has unknown mode %q", profile.ID, profile.Mode))
}
