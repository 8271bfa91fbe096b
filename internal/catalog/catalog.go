// Package catalog holds the read-only catalog entities the pricing and
// variation engine consumes. Catalog CRUD lives outside the engine.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by catalog lookups that match no row.
var ErrNotFound = errors.New("not found")

// Marketplace identifies an online sales channel.
type Marketplace string

const (
	Amazon Marketplace = "amazon"
	Ebay   Marketplace = "ebay"
	Reverb Marketplace = "reverb"
	Etsy   Marketplace = "etsy"
)

// Marketplaces lists every supported marketplace in display order.
var Marketplaces = []Marketplace{Amazon, Ebay, Reverb, Etsy}

// ParseMarketplace normalizes and validates a marketplace name.
func ParseMarketplace(raw string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Marketplaces {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown marketplace %q", raw)
}

// VariantKey is one cell of the quality tier × padding matrix.
type VariantKey string

const (
	ChoiceNoPadding  VariantKey = "choice_no_padding"
	ChoicePadded     VariantKey = "choice_padded"
	PremiumNoPadding VariantKey = "premium_no_padding"
	PremiumPadded    VariantKey = "premium_padded"
)

// VariantKeys lists all four baseline variants.
var VariantKeys = []VariantKey{ChoiceNoPadding, ChoicePadded, PremiumNoPadding, PremiumPadded}

// ParseVariantKey validates a variant key.
func ParseVariantKey(raw string) (VariantKey, error) {
	v := VariantKey(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range VariantKeys {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", raw)
}

// Padded reports whether the variant includes padding.
func (v VariantKey) Padded() bool {
	return strings.HasSuffix(string(v), "_padded")
}

// Premium reports whether the variant uses the premium quality tier.
func (v VariantKey) Premium() bool {
	return strings.HasPrefix(string(v), "premium_")
}

// Material role keys used for baseline costing.
const (
	RoleChoiceFabric  = "CHOICE_WATERPROOF_FABRIC"
	RolePremiumFabric = "PREMIUM_SYNTHETIC_LEATHER"
	RolePadding       = "STANDARD_PADDING"
)

// CostingRoles returns the material roles whose per-square-inch cost makes up
// the variant's material cost.
func (v VariantKey) CostingRoles() []string {
	roles := []string{RoleChoiceFabric}
	if v.Premium() {
		roles[0] = RolePremiumFabric
	}
	if v.Padded() {
		roles = append(roles, RolePadding)
	}
	return roles
}

// Manufacturer owns series.
type Manufacturer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Series groups models of one manufacturer.
type Series struct {
	ID             int64  `json:"id"`
	ManufacturerID int64  `json:"manufacturer_id"`
	Name           string `json:"name"`
}

// Model is a sellable product configuration.
type Model struct {
	ID                int64   `json:"id"`
	SeriesID          int64   `json:"series_id"`
	Name              string  `json:"name"`
	BaseSKU           string  `json:"base_sku"`
	WidthIn           float64 `json:"width_in"`
	DepthIn           float64 `json:"depth_in"`
	HeightIn          float64 `json:"height_in"`
	SurfaceAreaSqIn   float64 `json:"surface_area_sq_in"`
	WeightOz          float64 `json:"weight_oz"`
	EquipmentTypeID   int64   `json:"equipment_type_id"`
	ExcludeFromAmazon bool    `json:"exclude_from_amazon"`
	ExcludeFromEbay   bool    `json:"exclude_from_ebay"`
	ExcludeFromReverb bool    `json:"exclude_from_reverb"`
	ExcludeFromEtsy   bool    `json:"exclude_from_etsy"`
}

// SurfaceArea returns the stored surface area, or derives it from the
// dimensions as a cover with an open bottom.
func (m Model) SurfaceArea() float64 {
	if m.SurfaceAreaSqIn > 0 {
		return m.SurfaceAreaSqIn
	}
	w, d, h := m.WidthIn, m.DepthIn, m.HeightIn
	return w*d + 2*w*h + 2*d*h
}

// ExcludedFrom reports whether the model is flagged out of exports for mp.
func (m Model) ExcludedFrom(mp Marketplace) bool {
	switch mp {
	case Amazon:
		return m.ExcludeFromAmazon
	case Ebay:
		return m.ExcludeFromEbay
	case Reverb:
		return m.ExcludeFromReverb
	case Etsy:
		return m.ExcludeFromEtsy
	}
	return false
}

// ModelFilter narrows ListModels. Zero fields do not filter.
type ModelFilter struct {
	ManufacturerID int64
	SeriesID       int64
	IDs            []int64
}

// Material is a raw material priced per square inch.
type Material struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	CostPerSqInCents float64 `json:"cost_per_sq_in_cents"`
	WeightPerSqInOz  float64 `json:"weight_per_sq_in_oz"`
}

// MaterialRoleConfig names a material slot used for costing and SKU composition.
type MaterialRoleConfig struct {
	Role                 string `json:"role"`
	DisplayName          string `json:"display_name"`
	SKUAbbrevNoPadding   string `json:"sku_abbrev_no_padding"`
	SKUAbbrevWithPadding string `json:"sku_abbrev_with_padding"`
	EbayVariationEnabled bool   `json:"ebay_variation_enabled"`
	SortOrder            int    `json:"sort_order"`
}

// Abbrev returns the SKU abbreviation for the padding choice.
func (c MaterialRoleConfig) Abbrev(padded bool) string {
	if padded {
		return c.SKUAbbrevWithPadding
	}
	return c.SKUAbbrevNoPadding
}

// MaterialRoleAssignment binds a role to a material for a validity window.
type MaterialRoleAssignment struct {
	ID            int64      `json:"id"`
	Role          string     `json:"role"`
	MaterialID    int64      `json:"material_id"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// Window implements rates.Temporal.
func (a MaterialRoleAssignment) Window() (int64, time.Time, *time.Time) {
	return a.ID, a.EffectiveDate, a.EndDate
}

// MaterialColourSurcharge is a priced colour variant of a material.
type MaterialColourSurcharge struct {
	ID                   int64  `json:"id"`
	MaterialID           int64  `json:"material_id"`
	Colour               string `json:"colour"`
	SurchargeCents       int64  `json:"surcharge_cents"`
	ColorFriendlyName    string `json:"color_friendly_name,omitempty"`
	SKUAbbreviation      string `json:"sku_abbreviation"`
	EbayVariationEnabled bool   `json:"ebay_variation_enabled"`
}

// DesignOption is a non-material product option.
type DesignOption struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	IsPricingRelevant    bool   `json:"is_pricing_relevant"`
	EbayVariationEnabled bool   `json:"ebay_variation_enabled"`
	SKUAbbreviation      string `json:"sku_abbreviation"`
}

// EbayEligible reports whether the option participates in eBay variation SKUs.
func (o DesignOption) EbayEligible() bool {
	return o.IsPricingRelevant && o.EbayVariationEnabled
}
