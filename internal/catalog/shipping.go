package catalog

import (
	"fmt"
	"strings"
	"time"
)

// ShippingMode selects how a marketplace's shipping cost is derived.
type ShippingMode string

const (
	// ShippingCalculated looks the rate up by weight and pricing zone.
	ShippingCalculated ShippingMode = "calculated"
	// ShippingFlat charges a configured flat amount.
	ShippingFlat ShippingMode = "flat"
	// ShippingFixedCell uses an admin-chosen rate card tier and zone, ignoring weight.
	ShippingFixedCell ShippingMode = "fixed_cell"
)

// ParseShippingMode validates a shipping mode; empty means calculated.
func ParseShippingMode(raw string) (ShippingMode, error) {
	switch m := ShippingMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ShippingCalculated, nil
	case ShippingCalculated, ShippingFlat, ShippingFixedCell:
		return m, nil
	}
	return "", fmt.Errorf("unknown shipping mode %q", raw)
}

// ShippingRateCard is a carrier's named rate table.
type ShippingRateCard struct {
	ID      int64  `json:"id"`
	Carrier string `json:"carrier"`
	Name    string `json:"name"`
	Active  bool   `json:"active"`
}

// ShippingRateTier is a weight band [MinOz, MaxOz) on a rate card.
type ShippingRateTier struct {
	ID         int64   `json:"id"`
	RateCardID int64   `json:"rate_card_id"`
	MinOz      float64 `json:"min_oz"`
	MaxOz      float64 `json:"max_oz"`
}

// Contains reports whether weightOz falls in the tier. The upper bound is exclusive.
func (t ShippingRateTier) Contains(weightOz float64) bool {
	return weightOz >= t.MinOz && weightOz < t.MaxOz
}

// ShippingZoneRate is the price of one tier in one zone.
type ShippingZoneRate struct {
	ID        int64  `json:"id"`
	TierID    int64  `json:"tier_id"`
	Zone      string `json:"zone"`
	RateCents int64  `json:"rate_cents"`
}

// MarketplaceShippingProfile binds a marketplace to a rate card and pricing
// zone for a validity window. A non-zero EquipmentTypeID scopes the profile to
// models of that equipment type.
type MarketplaceShippingProfile struct {
	ID                int64        `json:"id"`
	Marketplace       Marketplace  `json:"marketplace"`
	EquipmentTypeID   int64        `json:"equipment_type_id,omitempty"`
	Mode              ShippingMode `json:"shipping_mode"`
	RateCardID        int64        `json:"rate_card_id,omitempty"`
	PricingZone       string       `json:"pricing_zone,omitempty"`
	FlatShippingCents int64        `json:"flat_shipping_cents,omitempty"`
	AssumedTierID     int64        `json:"assumed_tier_id,omitempty"`
	EffectiveDate     time.Time    `json:"effective_date"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
}

// Window implements rates.Temporal.
func (p MarketplaceShippingProfile) Window() (int64, time.Time, *time.Time) {
	return p.ID, p.EffectiveDate, p.EndDate
}

// LaborSetting is the global labor cost configuration.
type LaborSetting struct {
	HourlyRateCents    int64 `json:"hourly_rate_cents"`
	MinutesNoPadding   int   `json:"minutes_no_padding"`
	MinutesWithPadding int   `json:"minutes_with_padding"`
}

// Minutes returns the labor minutes for the padding choice.
func (l LaborSetting) Minutes(padded bool) int {
	if padded {
		return l.MinutesWithPadding
	}
	return l.MinutesNoPadding
}

// MarketplaceFeeRate is a marketplace's selling fee. FeeRate is stored either
// as a fraction (0.15) or as percentage points (15).
type MarketplaceFeeRate struct {
	Marketplace Marketplace `json:"marketplace"`
	FeeRate     float64     `json:"fee_rate"`
}

// VariantProfitSetting is the target profit for a variant.
type VariantProfitSetting struct {
	VariantKey  VariantKey `json:"variant_key"`
	ProfitCents int64      `json:"profit_cents"`
}
