// Package storetest opens migrated SQLite stores and loads a small, fully
// configured catalog for tests.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/migrations"
	"github.com/Simplici0/coverworks/internal/store"
)

// EquipmentType is the equipment type every fixture model and shipping profile uses.
const EquipmentType int64 = 1

// Fixture holds the ids created by Seed.
type Fixture struct {
	ManufacturerID int64
	SeriesID       int64
	// ModelIDs are three models of the fixture manufacturer.
	ModelIDs []int64
	// Materials maps each costing role to its assigned material id.
	Materials map[string]int64
	// Colours maps each role to its eBay-enabled colour ids, ascending.
	Colours map[string][]int64
	// DisabledColourID is a choice fabric colour not enabled for eBay.
	DisabledColourID int64
	// OptionIDs are eBay-eligible design options; IneligibleOptionID is not.
	OptionIDs          []int64
	IneligibleOptionID int64
	RateCardID         int64
	TierIDs            []int64
}

// Open returns a store over a fresh migrated database in t.TempDir().
func Open(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "coverworks-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if _, err := migrations.Up(context.Background(), database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return store.New(database), database
}

// Seed loads the standard fixture catalog into s.
func Seed(t *testing.T, s *store.Store) Fixture {
	t.Helper()
	ctx := context.Background()
	f := Fixture{Materials: map[string]int64{}, Colours: map[string][]int64{}}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	id := func(v int64, err error) int64 {
		t.Helper()
		must(err)
		return v
	}

	f.ManufacturerID = id(s.CreateManufacturer(ctx, "Fender"))
	f.SeriesID = id(s.CreateSeries(ctx, f.ManufacturerID, "Hot Rod"))
	for _, m := range []catalog.Model{
		{Name: "Hot Rod Deluxe", BaseSKU: "FEN-HRD", WidthIn: 20, DepthIn: 10, HeightIn: 15},
		{Name: "Hot Rod DeVille", BaseSKU: "FEN-HRDV", WidthIn: 22, DepthIn: 11, HeightIn: 18},
		{Name: "Blues Junior", BaseSKU: "FEN-BJ", WidthIn: 24, DepthIn: 12, HeightIn: 20},
	} {
		m.SeriesID = f.SeriesID
		m.EquipmentTypeID = EquipmentType
		f.ModelIDs = append(f.ModelIDs, id(s.CreateModel(ctx, m)))
	}

	effective := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	roles := []struct {
		cfg      catalog.MaterialRoleConfig
		material catalog.Material
		colours  []catalog.MaterialColourSurcharge
	}{
		{
			cfg:      catalog.MaterialRoleConfig{Role: catalog.RoleChoiceFabric, DisplayName: "Choice Waterproof", SKUAbbrevNoPadding: "CW", SKUAbbrevWithPadding: "CWP", EbayVariationEnabled: true, SortOrder: 1},
			material: catalog.Material{Name: "Waterproof Nylon", CostPerSqInCents: 0.4, WeightPerSqInOz: 0.01},
			colours: []catalog.MaterialColourSurcharge{
				{Colour: "Black", SKUAbbreviation: "BLK", EbayVariationEnabled: true},
				{Colour: "Red", SKUAbbreviation: "RED", SurchargeCents: 150, EbayVariationEnabled: true},
			},
		},
		{
			cfg:      catalog.MaterialRoleConfig{Role: catalog.RolePremiumFabric, DisplayName: "Premium Synthetic Leather", SKUAbbrevNoPadding: "PL", SKUAbbrevWithPadding: "PLP", EbayVariationEnabled: true, SortOrder: 2},
			material: catalog.Material{Name: "Synthetic Leather", CostPerSqInCents: 0.9, WeightPerSqInOz: 0.015},
			colours: []catalog.MaterialColourSurcharge{
				{Colour: "Black", SKUAbbreviation: "BLK", EbayVariationEnabled: true},
				{Colour: "Brown", SKUAbbreviation: "BRN", EbayVariationEnabled: true},
			},
		},
		{
			cfg:      catalog.MaterialRoleConfig{Role: catalog.RolePadding, DisplayName: "Standard Padding", SKUAbbrevNoPadding: "PD", SKUAbbrevWithPadding: "PD", SortOrder: 3},
			material: catalog.Material{Name: "Foam Padding", CostPerSqInCents: 0.25, WeightPerSqInOz: 0.005},
		},
	}
	for _, r := range roles {
		must(s.UpsertMaterialRoleConfig(ctx, r.cfg))
		materialID := id(s.CreateMaterial(ctx, r.material))
		f.Materials[r.cfg.Role] = materialID
		id(s.AssignMaterial(ctx, r.cfg.Role, materialID, effective, nil))
		for _, c := range r.colours {
			c.MaterialID = materialID
			f.Colours[r.cfg.Role] = append(f.Colours[r.cfg.Role], id(s.CreateColourSurcharge(ctx, c)))
		}
	}
	f.DisabledColourID = id(s.CreateColourSurcharge(ctx, catalog.MaterialColourSurcharge{
		MaterialID: f.Materials[catalog.RoleChoiceFabric], Colour: "Tan", SKUAbbreviation: "TAN",
	}))

	f.OptionIDs = append(f.OptionIDs,
		id(s.CreateDesignOption(ctx, catalog.DesignOption{Name: "Zipper Pocket", IsPricingRelevant: true, EbayVariationEnabled: true, SKUAbbreviation: "ZP"})),
		id(s.CreateDesignOption(ctx, catalog.DesignOption{Name: "Handle Opening", IsPricingRelevant: true, EbayVariationEnabled: true, SKUAbbreviation: "HO"})),
	)
	f.IneligibleOptionID = id(s.CreateDesignOption(ctx, catalog.DesignOption{Name: "Embroidered Logo", IsPricingRelevant: true, SKUAbbreviation: "EL"}))

	f.RateCardID = id(s.CreateRateCard(ctx, catalog.ShippingRateCard{Carrier: "USPS", Name: "Ground Advantage", Active: true}))
	for _, tier := range []struct {
		min, max float64
		zones    map[string]int64
	}{
		{0, 16, map[string]int64{"5": 850, "8": 975}},
		{16, 32, map[string]int64{"5": 1125, "8": 1290}},
		{32, 64, map[string]int64{"5": 1600, "8": 1840}},
	} {
		tierID := id(s.CreateRateTier(ctx, catalog.ShippingRateTier{RateCardID: f.RateCardID, MinOz: tier.min, MaxOz: tier.max}))
		f.TierIDs = append(f.TierIDs, tierID)
		for zone, cents := range tier.zones {
			must(s.SetZoneRate(ctx, tierID, zone, cents))
		}
	}

	for _, p := range []catalog.MarketplaceShippingProfile{
		{Marketplace: catalog.Amazon, Mode: catalog.ShippingCalculated, RateCardID: f.RateCardID, PricingZone: "8"},
		{Marketplace: catalog.Ebay, Mode: catalog.ShippingCalculated, RateCardID: f.RateCardID, PricingZone: "5"},
		{Marketplace: catalog.Reverb, Mode: catalog.ShippingFlat, FlatShippingCents: 1299},
		{Marketplace: catalog.Etsy, Mode: catalog.ShippingFixedCell, RateCardID: f.RateCardID, PricingZone: "5", AssumedTierID: f.TierIDs[1]},
	} {
		p.EquipmentTypeID = EquipmentType
		p.EffectiveDate = effective
		id(s.CreateShippingProfile(ctx, p))
	}

	for mp, rate := range map[catalog.Marketplace]float64{
		catalog.Amazon: 15,
		catalog.Ebay:   0.1325,
		catalog.Reverb: 5,
		catalog.Etsy:   6.5,
	} {
		must(s.SetFeeRate(ctx, mp, rate))
	}
	must(s.SetLaborSetting(ctx, catalog.LaborSetting{HourlyRateCents: 2400, MinutesNoPadding: 30, MinutesWithPadding: 45}))
	for v, cents := range map[catalog.VariantKey]int64{
		catalog.ChoiceNoPadding:  1200,
		catalog.ChoicePadded:     1500,
		catalog.PremiumNoPadding: 1800,
		catalog.PremiumPadded:    2200,
	} {
		must(s.SetProfitSetting(ctx, v, cents))
	}

	return f
}

// CountRows returns the row count of table.
func CountRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// DumpTable renders every row of table ordered by rowid, for before/after comparisons.
func DumpTable(t *testing.T, database *sql.DB, table string) string {
	t.Helper()

	rows, err := database.Query(`SELECT * FROM ` + table + ` ORDER BY rowid`)
	if err != nil {
		t.Fatalf("dump %s: %v", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("dump %s columns: %v", table, err)
	}

	var out strings.Builder
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("dump %s scan: %v", table, err)
		}
		fmt.Fprintln(&out, values...)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("dump %s: %v", table, err)
	}
	return out.String()
}
