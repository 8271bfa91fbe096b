package rates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Simplici0/coverworks/internal/catalog"
)

// Source is the catalog read API the resolver depends on. Lookups that match
// nothing return catalog.ErrNotFound; every other error is treated as transport.
type Source interface {
	ListRoleAssignments(ctx context.Context, role string) ([]catalog.MaterialRoleAssignment, error)
	GetMaterial(ctx context.Context, id int64) (catalog.Material, error)
	ListShippingProfiles(ctx context.Context, mp catalog.Marketplace) ([]catalog.MarketplaceShippingProfile, error)
	GetShippingRateCard(ctx context.Context, id int64) (catalog.ShippingRateCard, error)
	ListShippingTiers(ctx context.Context, rateCardID int64) ([]catalog.ShippingRateTier, error)
	ListZoneRates(ctx context.Context, tierID int64) ([]catalog.ShippingZoneRate, error)
	GetMarketplaceFeeRate(ctx context.Context, mp catalog.Marketplace) (catalog.MarketplaceFeeRate, error)
	GetLaborSetting(ctx context.Context) (catalog.LaborSetting, error)
	GetVariantProfitSetting(ctx context.Context, v catalog.VariantKey) (catalog.VariantProfitSetting, error)
}

// Options tunes the resolver's read cache. CacheSize <= 0 disables caching.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Resolver answers "what is in force" questions against a Source.
//
// The cache holds raw candidate rows, never resolved answers, so temporal
// validity is evaluated on every call against the caller's as-of time. Every
// row kind it reads is cached: role assignments, materials, shipping profiles,
// rate cards, tiers, zone rates, fee rates, the labor setting and profit
// settings. Any catalog write to one of them must be followed by Invalidate.
type Resolver struct {
	src   Source
	cache *expirable.LRU[string, any]
}

// NewResolver returns a Resolver reading from src.
func NewResolver(src Source, opts Options) *Resolver {
	r := &Resolver{src: src}
	if opts.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, any](opts.CacheSize, nil, opts.CacheTTL)
	}
	return r
}

// Invalidate drops every cached row.
func (r *Resolver) Invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func cached[T any](r *Resolver, key string, load func() (T, error)) (T, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if r.cache != nil {
		r.cache.Add(key, v)
	}
	return v, nil
}

func notConfigured(err error, kind, key string) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return &NotConfiguredError{Kind: kind, Key: key}
	}
	return err
}

// ActiveMaterial returns the role's assignment in force at asOf and its material.
func (r *Resolver) ActiveMaterial(ctx context.Context, role string, asOf time.Time) (catalog.MaterialRoleAssignment, catalog.Material, error) {
	assignments, err := cached(r, "assignments:"+role, func() ([]catalog.MaterialRoleAssignment, error) {
		return r.src.ListRoleAssignments(ctx, role)
	})
	if err != nil {
		return catalog.MaterialRoleAssignment{}, catalog.Material{}, fmt.Errorf("list role assignments: %w", err)
	}

	active, ok := ResolveActive(assignments, asOf)
	if !ok {
		return catalog.MaterialRoleAssignment{}, catalog.Material{}, &NotConfiguredError{Kind: "material assignment", Key: role}
	}

	material, err := cached(r, "material:"+strconv.FormatInt(active.MaterialID, 10), func() (catalog.Material, error) {
		return r.src.GetMaterial(ctx, active.MaterialID)
	})
	if err != nil {
		return active, catalog.Material{}, notConfigured(err, "material", strconv.FormatInt(active.MaterialID, 10))
	}
	return active, material, nil
}

// ActiveShippingProfile returns the marketplace's shipping profile in force at
// asOf. A profile scoped to equipmentTypeID wins over a marketplace-wide one.
func (r *Resolver) ActiveShippingProfile(ctx context.Context, mp catalog.Marketplace, equipmentTypeID int64, asOf time.Time) (catalog.MarketplaceShippingProfile, error) {
	profiles, err := cached(r, "profiles:"+string(mp), func() ([]catalog.MarketplaceShippingProfile, error) {
		return r.src.ListShippingProfiles(ctx, mp)
	})
	if err != nil {
		return catalog.MarketplaceShippingProfile{}, fmt.Errorf("list shipping profiles: %w", err)
	}

	var scoped, global []catalog.MarketplaceShippingProfile
	for _, p := range profiles {
		switch p.EquipmentTypeID {
		case 0:
			global = append(global, p)
		case equipmentTypeID:
			scoped = append(scoped, p)
		}
	}
	if equipmentTypeID != 0 {
		if active, ok := ResolveActive(scoped, asOf); ok {
			return active, nil
		}
	}
	active, ok := ResolveActive(global, asOf)
	if !ok {
		return catalog.MarketplaceShippingProfile{}, &NotConfiguredError{Kind: "shipping profile", Key: string(mp)}
	}
	return active, nil
}

// RateCard returns a rate card by id.
func (r *Resolver) RateCard(ctx context.Context, id int64) (catalog.ShippingRateCard, error) {
	card, err := cached(r, "card:"+strconv.FormatInt(id, 10), func() (catalog.ShippingRateCard, error) {
		return r.src.GetShippingRateCard(ctx, id)
	})
	if err != nil {
		return card, notConfigured(err, "rate card", strconv.FormatInt(id, 10))
	}
	return card, nil
}

// ShippingRate looks up the rate for weightOz in zone on a rate card.
func (r *Resolver) ShippingRate(ctx context.Context, rateCardID int64, weightOz float64, zone string) (catalog.ShippingZoneRate, error) {
	tiers, err := r.tiers(ctx, rateCardID)
	if err != nil {
		return catalog.ShippingZoneRate{}, err
	}

	tier, ok := FindTier(tiers, weightOz)
	if !ok {
		return catalog.ShippingZoneRate{}, &MissingShippingRateError{RateCardID: rateCardID, WeightOz: weightOz, Zone: zone}
	}
	return r.zoneRate(ctx, rateCardID, tier.ID, weightOz, zone)
}

// TierRate looks up the rate of a specific tier and zone on a rate card,
// bypassing weight-based tier selection.
func (r *Resolver) TierRate(ctx context.Context, rateCardID, tierID int64, zone string) (catalog.ShippingZoneRate, error) {
	tiers, err := r.tiers(ctx, rateCardID)
	if err != nil {
		return catalog.ShippingZoneRate{}, err
	}
	for _, t := range tiers {
		if t.ID == tierID {
			return r.zoneRate(ctx, rateCardID, tierID, 0, zone)
		}
	}
	return catalog.ShippingZoneRate{}, &MissingShippingRateError{RateCardID: rateCardID, TierID: tierID, Zone: zone}
}

func (r *Resolver) tiers(ctx context.Context, rateCardID int64) ([]catalog.ShippingRateTier, error) {
	tiers, err := cached(r, "tiers:"+strconv.FormatInt(rateCardID, 10), func() ([]catalog.ShippingRateTier, error) {
		return r.src.ListShippingTiers(ctx, rateCardID)
	})
	if err != nil {
		return nil, fmt.Errorf("list shipping tiers: %w", err)
	}
	return tiers, nil
}

func (r *Resolver) zoneRate(ctx context.Context, rateCardID, tierID int64, weightOz float64, zone string) (catalog.ShippingZoneRate, error) {
	zoneRates, err := cached(r, "zones:"+strconv.FormatInt(tierID, 10), func() ([]catalog.ShippingZoneRate, error) {
		return r.src.ListZoneRates(ctx, tierID)
	})
	if err != nil {
		return catalog.ShippingZoneRate{}, fmt.Errorf("list zone rates: %w", err)
	}

	rate, ok := FindZoneRate(zoneRates, zone)
	if !ok {
		return catalog.ShippingZoneRate{}, &MissingShippingRateError{RateCardID: rateCardID, TierID: tierID, WeightOz: weightOz, Zone: zone}
	}
	return rate, nil
}

// FeeRate returns the marketplace's stored fee rate.
func (r *Resolver) FeeRate(ctx context.Context, mp catalog.Marketplace) (catalog.MarketplaceFeeRate, error) {
	fee, err := cached(r, "fee:"+string(mp), func() (catalog.MarketplaceFeeRate, error) {
		return r.src.GetMarketplaceFeeRate(ctx, mp)
	})
	if err != nil {
		return fee, notConfigured(err, "marketplace fee rate", string(mp))
	}
	return fee, nil
}

// Labor returns the global labor setting.
func (r *Resolver) Labor(ctx context.Context) (catalog.LaborSetting, error) {
	labor, err := cached(r, "labor", func() (catalog.LaborSetting, error) {
		return r.src.GetLaborSetting(ctx)
	})
	if err != nil {
		return labor, notConfigured(err, "labor setting", "global")
	}
	return labor, nil
}

// Profit returns the target profit setting for a variant.
func (r *Resolver) Profit(ctx context.Context, v catalog.VariantKey) (catalog.VariantProfitSetting, error) {
	profit, err := cached(r, "profit:"+string(v), func() (catalog.VariantProfitSetting, error) {
		return r.src.GetVariantProfitSetting(ctx, v)
	})
	if err != nil {
		return profit, notConfigured(err, "profit setting", string(v))
	}
	return profit, nil
}
