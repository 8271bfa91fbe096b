package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
)

// Catalog writers back the dev seed and tests. Callers holding a
// *rates.Resolver must Invalidate it after writing rate configuration.

func (s *Store) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, db.Transport(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, db.Transport(op, err)
	}
	return id, nil
}

// CreateManufacturer inserts a manufacturer and returns its id.
func (s *Store) CreateManufacturer(ctx context.Context, name string) (int64, error) {
	return s.insert(ctx, "create manufacturer", `INSERT INTO manufacturers (name) VALUES (?)`, name)
}

// CreateSeries inserts a series and returns its id.
func (s *Store) CreateSeries(ctx context.Context, manufacturerID int64, name string) (int64, error) {
	return s.insert(ctx, "create series", `INSERT INTO series (manufacturer_id, name) VALUES (?, ?)`, manufacturerID, name)
}

// CreateModel inserts m and returns its id. m.ID is ignored.
func (s *Store) CreateModel(ctx context.Context, m catalog.Model) (int64, error) {
	return s.insert(ctx, "create model", `
		INSERT INTO models (series_id, name, base_sku, width_in, depth_in, height_in, surface_area_sq_in,
			weight_oz, equipment_type_id, exclude_from_amazon, exclude_from_ebay, exclude_from_reverb, exclude_from_etsy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SeriesID, m.Name, m.BaseSKU, m.WidthIn, m.DepthIn, m.HeightIn, m.SurfaceAreaSqIn,
		m.WeightOz, m.EquipmentTypeID, m.ExcludeFromAmazon, m.ExcludeFromEbay, m.ExcludeFromReverb, m.ExcludeFromEtsy)
}

// CreateMaterial inserts a material and returns its id.
func (s *Store) CreateMaterial(ctx context.Context, m catalog.Material) (int64, error) {
	return s.insert(ctx, "create material", `
		INSERT INTO materials (name, cost_per_sq_in_cents, weight_per_sq_in_oz) VALUES (?, ?, ?)
	`, m.Name, m.CostPerSqInCents, m.WeightPerSqInOz)
}

// UpdateMaterialCost changes a material's per-square-inch cost.
func (s *Store) UpdateMaterialCost(ctx context.Context, id int64, costPerSqInCents float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE materials SET cost_per_sq_in_cents = ? WHERE id = ?`, costPerSqInCents, id)
	if err != nil {
		return db.Transport("update material cost", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lookupErr(fmt.Sprintf("update material %d", id), sql.ErrNoRows)
	}
	return nil
}

// UpsertMaterialRoleConfig inserts or replaces the config for c.Role.
func (s *Store) UpsertMaterialRoleConfig(ctx context.Context, c catalog.MaterialRoleConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO material_role_configs (role, display_name, sku_abbrev_no_padding, sku_abbrev_with_padding, ebay_variation_enabled, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET
			display_name = excluded.display_name,
			sku_abbrev_no_padding = excluded.sku_abbrev_no_padding,
			sku_abbrev_with_padding = excluded.sku_abbrev_with_padding,
			ebay_variation_enabled = excluded.ebay_variation_enabled,
			sort_order = excluded.sort_order
	`, c.Role, c.DisplayName, c.SKUAbbrevNoPadding, c.SKUAbbrevWithPadding, c.EbayVariationEnabled, c.SortOrder)
	return db.Transport("upsert role config", err)
}

// AssignMaterial records that role uses materialID from effective until end.
func (s *Store) AssignMaterial(ctx context.Context, role string, materialID int64, effective time.Time, end *time.Time) (int64, error) {
	return s.insert(ctx, "assign material", `
		INSERT INTO material_role_assignments (role, material_id, effective_date, end_date) VALUES (?, ?, ?, ?)
	`, role, materialID, formatTime(effective), formatNullTime(end))
}

// CreateColourSurcharge inserts a colour of a material and returns its id.
func (s *Store) CreateColourSurcharge(ctx context.Context, c catalog.MaterialColourSurcharge) (int64, error) {
	return s.insert(ctx, "create colour surcharge", `
		INSERT INTO material_colour_surcharges (material_id, colour, surcharge_cents, color_friendly_name, sku_abbreviation, ebay_variation_enabled)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.MaterialID, c.Colour, c.SurchargeCents, c.ColorFriendlyName, c.SKUAbbreviation, c.EbayVariationEnabled)
}

// CreateDesignOption inserts a design option and returns its id.
func (s *Store) CreateDesignOption(ctx context.Context, o catalog.DesignOption) (int64, error) {
	return s.insert(ctx, "create design option", `
		INSERT INTO design_options (name, is_pricing_relevant, ebay_variation_enabled, sku_abbreviation) VALUES (?, ?, ?, ?)
	`, o.Name, o.IsPricingRelevant, o.EbayVariationEnabled, o.SKUAbbreviation)
}

// CreateRateCard inserts a rate card and returns its id.
func (s *Store) CreateRateCard(ctx context.Context, c catalog.ShippingRateCard) (int64, error) {
	return s.insert(ctx, "create rate card", `
		INSERT INTO shipping_rate_cards (carrier, name, active) VALUES (?, ?, ?)
	`, c.Carrier, c.Name, c.Active)
}

// CreateRateTier inserts a weight tier on a rate card and returns its id.
func (s *Store) CreateRateTier(ctx context.Context, t catalog.ShippingRateTier) (int64, error) {
	return s.insert(ctx, "create rate tier", `
		INSERT INTO shipping_rate_tiers (rate_card_id, min_oz, max_oz) VALUES (?, ?, ?)
	`, t.RateCardID, t.MinOz, t.MaxOz)
}

// SetZoneRate inserts or replaces the rate of a tier in a zone.
func (s *Store) SetZoneRate(ctx context.Context, tierID int64, zone string, rateCents int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipping_zone_rates (tier_id, zone, rate_cents) VALUES (?, ?, ?)
		ON CONFLICT(tier_id, zone) DO UPDATE SET rate_cents = excluded.rate_cents
	`, tierID, zone, rateCents)
	return db.Transport("set zone rate", err)
}

// CreateShippingProfile inserts a marketplace shipping profile and returns its id.
func (s *Store) CreateShippingProfile(ctx context.Context, p catalog.MarketplaceShippingProfile) (int64, error) {
	mode := p.Mode
	if mode == "" {
		mode = catalog.ShippingCalculated
	}
	return s.insert(ctx, "create shipping profile", `
		INSERT INTO marketplace_shipping_profiles (marketplace, equipment_type_id, shipping_mode, rate_card_id, pricing_zone,
			flat_shipping_cents, assumed_tier_id, effective_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(p.Marketplace), p.EquipmentTypeID, string(mode), nullID(p.RateCardID), p.PricingZone,
		p.FlatShippingCents, nullID(p.AssumedTierID), formatTime(p.EffectiveDate), formatNullTime(p.EndDate))
}

// SetLaborSetting replaces the global labor setting.
func (s *Store) SetLaborSetting(ctx context.Context, l catalog.LaborSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labor_settings (id, hourly_rate_cents, minutes_no_padding, minutes_with_padding) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hourly_rate_cents = excluded.hourly_rate_cents,
			minutes_no_padding = excluded.minutes_no_padding,
			minutes_with_padding = excluded.minutes_with_padding
	`, l.HourlyRateCents, l.MinutesNoPadding, l.MinutesWithPadding)
	return db.Transport("set labor setting", err)
}

// SetFeeRate replaces a marketplace's fee rate.
func (s *Store) SetFeeRate(ctx context.Context, mp catalog.Marketplace, feeRate float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO marketplace_fee_rates (marketplace, fee_rate) VALUES (?, ?)
		ON CONFLICT(marketplace) DO UPDATE SET fee_rate = excluded.fee_rate
	`, string(mp), feeRate)
	return db.Transport("set fee rate", err)
}

// SetProfitSetting replaces a variant's target profit.
func (s *Store) SetProfitSetting(ctx context.Context, v catalog.VariantKey, profitCents int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variant_profit_settings (variant_key, profit_cents) VALUES (?, ?)
		ON CONFLICT(variant_key) DO UPDATE SET profit_cents = excluded.profit_cents
	`, string(v), profitCents)
	return db.Transport("set profit setting", err)
}
