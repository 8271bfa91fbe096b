package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
)

const modelColumns = `m.id, m.series_id, m.name, m.base_sku, m.width_in, m.depth_in, m.height_in,
	m.surface_area_sq_in, m.weight_oz, m.equipment_type_id,
	m.exclude_from_amazon, m.exclude_from_ebay, m.exclude_from_reverb, m.exclude_from_etsy`

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (catalog.Model, error) {
	var m catalog.Model
	err := row.Scan(
		&m.ID, &m.SeriesID, &m.Name, &m.BaseSKU, &m.WidthIn, &m.DepthIn, &m.HeightIn,
		&m.SurfaceAreaSqIn, &m.WeightOz, &m.EquipmentTypeID,
		&m.ExcludeFromAmazon, &m.ExcludeFromEbay, &m.ExcludeFromReverb, &m.ExcludeFromEtsy,
	)
	return m, err
}

// GetModel returns a model by id.
func (s *Store) GetModel(ctx context.Context, id int64) (catalog.Model, error) {
	m, err := scanModel(s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models m WHERE m.id = ?`, id))
	if err != nil {
		return m, lookupErr(fmt.Sprintf("get model %d", id), err)
	}
	return m, nil
}

// ListModels returns models matching every non-zero filter field, by id.
func (s *Store) ListModels(ctx context.Context, filter catalog.ModelFilter) ([]catalog.Model, error) {
	var (
		where []string
		args  []any
	)
	if filter.ManufacturerID != 0 {
		where = append(where, "s.manufacturer_id = ?")
		args = append(args, filter.ManufacturerID)
	}
	if filter.SeriesID != 0 {
		where = append(where, "m.series_id = ?")
		args = append(args, filter.SeriesID)
	}
	if len(filter.IDs) > 0 {
		ph, idArgs := placeholders(filter.IDs)
		where = append(where, "m.id IN ("+ph+")")
		args = append(args, idArgs...)
	}

	query := `SELECT ` + modelColumns + ` FROM models m JOIN series s ON s.id = m.series_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Transport("list models", err)
	}
	defer rows.Close()

	var models []catalog.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, db.Transport("scan model", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate models", err)
	}
	return models, nil
}

// GetMaterial returns a material by id.
func (s *Store) GetMaterial(ctx context.Context, id int64) (catalog.Material, error) {
	var m catalog.Material
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, cost_per_sq_in_cents, weight_per_sq_in_oz
		FROM materials WHERE id = ?
	`, id).Scan(&m.ID, &m.Name, &m.CostPerSqInCents, &m.WeightPerSqInOz)
	if err != nil {
		return m, lookupErr(fmt.Sprintf("get material %d", id), err)
	}
	return m, nil
}

// GetMaterialRoleConfig returns the config for role.
func (s *Store) GetMaterialRoleConfig(ctx context.Context, role string) (catalog.MaterialRoleConfig, error) {
	var c catalog.MaterialRoleConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT role, display_name, sku_abbrev_no_padding, sku_abbrev_with_padding, ebay_variation_enabled, sort_order
		FROM material_role_configs WHERE role = ?
	`, role).Scan(&c.Role, &c.DisplayName, &c.SKUAbbrevNoPadding, &c.SKUAbbrevWithPadding, &c.EbayVariationEnabled, &c.SortOrder)
	if err != nil {
		return c, lookupErr("get role config "+role, err)
	}
	return c, nil
}

// ListRoleAssignments returns every assignment ever made for role.
func (s *Store) ListRoleAssignments(ctx context.Context, role string) ([]catalog.MaterialRoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, material_id, effective_date, end_date
		FROM material_role_assignments WHERE role = ? ORDER BY id
	`, role)
	if err != nil {
		return nil, db.Transport("list role assignments", err)
	}
	defer rows.Close()

	var out []catalog.MaterialRoleAssignment
	for rows.Next() {
		var (
			a         catalog.MaterialRoleAssignment
			effective string
			end       sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Role, &a.MaterialID, &effective, &end); err != nil {
			return nil, db.Transport("scan role assignment", err)
		}
		if a.EffectiveDate, err = parseTime(effective); err != nil {
			return nil, db.Transport("parse role assignment", err)
		}
		if a.EndDate, err = parseNullTime(end); err != nil {
			return nil, db.Transport("parse role assignment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate role assignments", err)
	}
	return out, nil
}

// ListColourSurcharges returns the colours with the given ids. Unknown ids are
// left out.
func (s *Store) ListColourSurcharges(ctx context.Context, ids []int64) ([]catalog.MaterialColourSurcharge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph, args := placeholders(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, material_id, colour, surcharge_cents, color_friendly_name, sku_abbreviation, ebay_variation_enabled
		FROM material_colour_surcharges WHERE id IN (`+ph+`) ORDER BY id
	`, args...)
	if err != nil {
		return nil, db.Transport("list colour surcharges", err)
	}
	defer rows.Close()

	var out []catalog.MaterialColourSurcharge
	for rows.Next() {
		var c catalog.MaterialColourSurcharge
		if err := rows.Scan(&c.ID, &c.MaterialID, &c.Colour, &c.SurchargeCents, &c.ColorFriendlyName, &c.SKUAbbreviation, &c.EbayVariationEnabled); err != nil {
			return nil, db.Transport("scan colour surcharge", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate colour surcharges", err)
	}
	return out, nil
}

// ListDesignOptions returns the design options with the given ids. Unknown ids
// are left out.
func (s *Store) ListDesignOptions(ctx context.Context, ids []int64) ([]catalog.DesignOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph, args := placeholders(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_pricing_relevant, ebay_variation_enabled, sku_abbreviation
		FROM design_options WHERE id IN (`+ph+`) ORDER BY id
	`, args...)
	if err != nil {
		return nil, db.Transport("list design options", err)
	}
	defer rows.Close()

	var out []catalog.DesignOption
	for rows.Next() {
		var o catalog.DesignOption
		if err := rows.Scan(&o.ID, &o.Name, &o.IsPricingRelevant, &o.EbayVariationEnabled, &o.SKUAbbreviation); err != nil {
			return nil, db.Transport("scan design option", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate design options", err)
	}
	return out, nil
}

// ListShippingProfiles returns every shipping profile of a marketplace.
func (s *Store) ListShippingProfiles(ctx context.Context, mp catalog.Marketplace) ([]catalog.MarketplaceShippingProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, marketplace, equipment_type_id, shipping_mode, COALESCE(rate_card_id, 0), pricing_zone,
			flat_shipping_cents, COALESCE(assumed_tier_id, 0), effective_date, end_date
		FROM marketplace_shipping_profiles WHERE marketplace = ? ORDER BY id
	`, string(mp))
	if err != nil {
		return nil, db.Transport("list shipping profiles", err)
	}
	defer rows.Close()

	var out []catalog.MarketplaceShippingProfile
	for rows.Next() {
		var (
			p         catalog.MarketplaceShippingProfile
			mpRaw     string
			mode      string
			effective string
			end       sql.NullString
		)
		if err := rows.Scan(&p.ID, &mpRaw, &p.EquipmentTypeID, &mode, &p.RateCardID, &p.PricingZone,
			&p.FlatShippingCents, &p.AssumedTierID, &effective, &end); err != nil {
			return nil, db.Transport("scan shipping profile", err)
		}
		p.Marketplace = catalog.Marketplace(mpRaw)
		p.Mode = catalog.ShippingMode(mode)
		if p.EffectiveDate, err = parseTime(effective); err != nil {
			return nil, db.Transport("parse shipping profile", err)
		}
		if p.EndDate, err = parseNullTime(end); err != nil {
			return nil, db.Transport("parse shipping profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate shipping profiles", err)
	}
	return out, nil
}

// GetShippingRateCard returns a rate card by id.
func (s *Store) GetShippingRateCard(ctx context.Context, id int64) (catalog.ShippingRateCard, error) {
	var c catalog.ShippingRateCard
	err := s.db.QueryRowContext(ctx, `
		SELECT id, carrier, name, active FROM shipping_rate_cards WHERE id = ?
	`, id).Scan(&c.ID, &c.Carrier, &c.Name, &c.Active)
	if err != nil {
		return c, lookupErr(fmt.Sprintf("get rate card %d", id), err)
	}
	return c, nil
}

// ListShippingTiers returns a rate card's tiers ordered by min_oz.
func (s *Store) ListShippingTiers(ctx context.Context, rateCardID int64) ([]catalog.ShippingRateTier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rate_card_id, min_oz, max_oz
		FROM shipping_rate_tiers WHERE rate_card_id = ? ORDER BY min_oz, id
	`, rateCardID)
	if err != nil {
		return nil, db.Transport("list shipping tiers", err)
	}
	defer rows.Close()

	var out []catalog.ShippingRateTier
	for rows.Next() {
		var t catalog.ShippingRateTier
		if err := rows.Scan(&t.ID, &t.RateCardID, &t.MinOz, &t.MaxOz); err != nil {
			return nil, db.Transport("scan shipping tier", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate shipping tiers", err)
	}
	return out, nil
}

// ListZoneRates returns every zone rate of a tier.
func (s *Store) ListZoneRates(ctx context.Context, tierID int64) ([]catalog.ShippingZoneRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tier_id, zone, rate_cents FROM shipping_zone_rates WHERE tier_id = ? ORDER BY zone
	`, tierID)
	if err != nil {
		return nil, db.Transport("list zone rates", err)
	}
	defer rows.Close()

	var out []catalog.ShippingZoneRate
	for rows.Next() {
		var z catalog.ShippingZoneRate
		if err := rows.Scan(&z.ID, &z.TierID, &z.Zone, &z.RateCents); err != nil {
			return nil, db.Transport("scan zone rate", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate zone rates", err)
	}
	return out, nil
}

// GetMarketplaceFeeRate returns the stored fee rate of mp.
func (s *Store) GetMarketplaceFeeRate(ctx context.Context, mp catalog.Marketplace) (catalog.MarketplaceFeeRate, error) {
	f := catalog.MarketplaceFeeRate{Marketplace: mp}
	err := s.db.QueryRowContext(ctx, `SELECT fee_rate FROM marketplace_fee_rates WHERE marketplace = ?`, string(mp)).Scan(&f.FeeRate)
	if err != nil {
		return f, lookupErr("get fee rate "+string(mp), err)
	}
	return f, nil
}

// GetLaborSetting returns the global labor setting.
func (s *Store) GetLaborSetting(ctx context.Context) (catalog.LaborSetting, error) {
	var l catalog.LaborSetting
	err := s.db.QueryRowContext(ctx, `
		SELECT hourly_rate_cents, minutes_no_padding, minutes_with_padding FROM labor_settings WHERE id = 1
	`).Scan(&l.HourlyRateCents, &l.MinutesNoPadding, &l.MinutesWithPadding)
	if err != nil {
		return l, lookupErr("get labor setting", err)
	}
	return l, nil
}

// GetVariantProfitSetting returns the target profit of a variant.
func (s *Store) GetVariantProfitSetting(ctx context.Context, v catalog.VariantKey) (catalog.VariantProfitSetting, error) {
	p := catalog.VariantProfitSetting{VariantKey: v}
	err := s.db.QueryRowContext(ctx, `SELECT profit_cents FROM variant_profit_settings WHERE variant_key = ?`, string(v)).Scan(&p.ProfitCents)
	if err != nil {
		return p, lookupErr("get profit setting "+string(v), err)
	}
	return p, nil
}
