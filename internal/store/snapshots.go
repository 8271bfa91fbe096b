package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/snapshot"
)

// Snapshot and history rows share one column layout.
const recordColumns = `model_id, marketplace, variant_key,
	raw_cost_cents, base_cost_cents, retail_price_cents, marketplace_fee_cents, profit_cents,
	material_cost_cents, shipping_cost_cents, labor_cost_cents,
	weight_oz, surface_area_sq_in, material_cost_per_sq_in_cents, labor_minutes, labor_rate_cents_per_hour,
	marketplace_fee_rate, shipping_mode, rate_card_id, pricing_zone, reason, run_id, calculated_at`

const recordPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

func recordArgs(r snapshot.Record) []any {
	return []any{
		r.ModelID, string(r.Marketplace), string(r.Variant),
		r.RawCostCents, r.BaseCostCents, r.RetailPriceCents, r.MarketplaceFeeCents, r.ProfitCents,
		r.MaterialCostCents, r.ShippingCostCents, r.LaborCostCents,
		r.WeightOz, r.SurfaceAreaSqIn, r.MaterialCostPerSqInCents, r.LaborMinutes, r.LaborRateCentsPerHour,
		r.MarketplaceFeeRate, string(r.ShippingMode), r.RateCardID, r.PricingZone, string(r.Reason), r.RunID,
		formatTime(r.CalculatedAt),
	}
}

func scanRecord(row scanner) (snapshot.Record, error) {
	var (
		r            snapshot.Record
		mp, variant  string
		mode, why    string
		calculatedAt string
	)
	err := row.Scan(
		&r.ID, &r.ModelID, &mp, &variant,
		&r.RawCostCents, &r.BaseCostCents, &r.RetailPriceCents, &r.MarketplaceFeeCents, &r.ProfitCents,
		&r.MaterialCostCents, &r.ShippingCostCents, &r.LaborCostCents,
		&r.WeightOz, &r.SurfaceAreaSqIn, &r.MaterialCostPerSqInCents, &r.LaborMinutes, &r.LaborRateCentsPerHour,
		&r.MarketplaceFeeRate, &mode, &r.RateCardID, &r.PricingZone, &why, &r.RunID, &calculatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Marketplace = catalog.Marketplace(mp)
	r.Variant = catalog.VariantKey(variant)
	r.ShippingMode = catalog.ShippingMode(mode)
	r.Reason = snapshot.ParseReason(why)
	r.CalculatedAt, err = parseTime(calculatedAt)
	return r, err
}

// SaveCalculation upserts the current snapshot and appends a history row in
// one transaction. The returned record carries the history row id.
func (s *Store) SaveCalculation(ctx context.Context, rec snapshot.Record) (snapshot.Record, error) {
	args := recordArgs(rec)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO model_pricing_history (`+recordColumns+`) VALUES (`+recordPlaceholders+`)`, args...)
		if err != nil {
			return db.Transport("insert pricing history", err)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return db.Transport("insert pricing history", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO model_pricing_snapshots (`+recordColumns+`) VALUES (`+recordPlaceholders+`)
			ON CONFLICT(model_id, marketplace, variant_key) DO UPDATE SET
				raw_cost_cents = excluded.raw_cost_cents,
				base_cost_cents = excluded.base_cost_cents,
				retail_price_cents = excluded.retail_price_cents,
				marketplace_fee_cents = excluded.marketplace_fee_cents,
				profit_cents = excluded.profit_cents,
				material_cost_cents = excluded.material_cost_cents,
				shipping_cost_cents = excluded.shipping_cost_cents,
				labor_cost_cents = excluded.labor_cost_cents,
				weight_oz = excluded.weight_oz,
				surface_area_sq_in = excluded.surface_area_sq_in,
				material_cost_per_sq_in_cents = excluded.material_cost_per_sq_in_cents,
				labor_minutes = excluded.labor_minutes,
				labor_rate_cents_per_hour = excluded.labor_rate_cents_per_hour,
				marketplace_fee_rate = excluded.marketplace_fee_rate,
				shipping_mode = excluded.shipping_mode,
				rate_card_id = excluded.rate_card_id,
				pricing_zone = excluded.pricing_zone,
				reason = excluded.reason,
				run_id = excluded.run_id,
				calculated_at = excluded.calculated_at
		`, args...)
		return db.Transport("upsert pricing snapshot", err)
	})
	if err != nil {
		return snapshot.Record{}, err
	}
	return rec, nil
}

// GetSnapshot returns the current snapshot for key.
func (s *Store) GetSnapshot(ctx context.Context, key snapshot.Key) (snapshot.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, `+recordColumns+` FROM model_pricing_snapshots
		WHERE model_id = ? AND marketplace = ? AND variant_key = ?
	`, key.ModelID, string(key.Marketplace), string(key.Variant)))
	if err != nil {
		return rec, lookupErr(fmt.Sprintf("get snapshot %s", key), err)
	}
	return rec, nil
}

// ListHistory returns history rows for key newest first. limit <= 0 returns all.
func (s *Store) ListHistory(ctx context.Context, key snapshot.Key, limit int) ([]snapshot.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, `+recordColumns+` FROM model_pricing_history
		WHERE model_id = ? AND marketplace = ? AND variant_key = ?
		ORDER BY id DESC LIMIT ?
	`, key.ModelID, string(key.Marketplace), string(key.Variant), limit)
	if err != nil {
		return nil, db.Transport("list pricing history", err)
	}
	defer rows.Close()

	out := []snapshot.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, db.Transport("scan pricing history", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate pricing history", err)
	}
	return out, nil
}
