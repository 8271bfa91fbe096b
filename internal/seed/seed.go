package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

type roleDefault struct {
	role, name, noPadding, withPadding string
	ebay                               bool
	sortOrder                          int
}

var defaultRoles = []roleDefault{
	{catalog.RoleChoiceFabric, "Choice Waterproof Fabric", "CW", "CWP", true, 1},
	{catalog.RolePremiumFabric, "Premium Synthetic Leather", "PL", "PLP", true, 2},
	{catalog.RolePadding, "Standard Padding", "PD", "PD", false, 3},
}

var defaultFeeRates = []struct {
	marketplace catalog.Marketplace
	rate        float64
}{
	{catalog.Amazon, 15},
	{catalog.Ebay, 0.1325},
	{catalog.Reverb, 5},
	{catalog.Etsy, 6.5},
}

var defaultProfits = []struct {
	variant catalog.VariantKey
	cents   int64
}{
	{catalog.ChoiceNoPadding, 1200},
	{catalog.ChoicePadded, 1500},
	{catalog.PremiumNoPadding, 1800},
	{catalog.PremiumPadded, 2200},
}

// Run inserts the default pricing configuration in an idempotent way. Rows
// that already exist are left untouched.
func Run(ctx context.Context, database *sql.DB) (Stats, error) {
	stats := Stats{}

	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := ensureRoleConfigs(ctx, tx, &stats); err != nil {
			return err
		}
		if err := ensureLaborSetting(ctx, tx, &stats); err != nil {
			return err
		}
		if err := ensureFeeRates(ctx, tx, &stats); err != nil {
			return err
		}
		return ensureProfitSettings(ctx, tx, &stats)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("run seed: %w", err)
	}

	return stats, nil
}

func exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(`+query+`)`, args...).Scan(&ok)
	return ok, err
}

func ensureRoleConfigs(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, r := range defaultRoles {
		ok, err := exists(ctx, tx, `SELECT 1 FROM material_role_configs WHERE role = ?`, r.role)
		if err != nil {
			return fmt.Errorf("check role config %s: %w", r.role, err)
		}
		if ok {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO material_role_configs (role, display_name, sku_abbrev_no_padding, sku_abbrev_with_padding, ebay_variation_enabled, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.role, r.name, r.noPadding, r.withPadding, r.ebay, r.sortOrder); err != nil {
			return fmt.Errorf("insert role config %s: %w", r.role, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureLaborSetting(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	ok, err := exists(ctx, tx, `SELECT 1 FROM labor_settings WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("check labor setting existence: %w", err)
	}
	if ok {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO labor_settings (id, hourly_rate_cents, minutes_no_padding, minutes_with_padding)
		VALUES (1, ?, ?, ?)
	`, 2400, 30, 45); err != nil {
		return fmt.Errorf("insert labor setting singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureFeeRates(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, f := range defaultFeeRates {
		ok, err := exists(ctx, tx, `SELECT 1 FROM marketplace_fee_rates WHERE marketplace = ?`, string(f.marketplace))
		if err != nil {
			return fmt.Errorf("check fee rate %s: %w", f.marketplace, err)
		}
		if ok {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO marketplace_fee_rates (marketplace, fee_rate) VALUES (?, ?)
		`, string(f.marketplace), f.rate); err != nil {
			return fmt.Errorf("insert fee rate %s: %w", f.marketplace, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureProfitSettings(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, p := range defaultProfits {
		ok, err := exists(ctx, tx, `SELECT 1 FROM variant_profit_settings WHERE variant_key = ?`, string(p.variant))
		if err != nil {
			return fmt.Errorf("check profit setting %s: %w", p.variant, err)
		}
		if ok {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variant_profit_settings (variant_key, profit_cents) VALUES (?, ?)
		`, string(p.variant), p.cents); err != nil {
			return fmt.Errorf("insert profit setting %s: %w", p.variant, err)
		}
		stats.Inserts++
	}
	return nil
}
