// Package snapshot keeps the current baseline price per (model, marketplace,
// variant) and the append-only history of every calculation.
package snapshot

import (
	"fmt"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/pricing"
)

// Key addresses one baseline price.
type Key struct {
	ModelID     int64
	Marketplace catalog.Marketplace
	Variant     catalog.VariantKey
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.ModelID, k.Marketplace, k.Variant)
}

// Reason records what triggered a calculation.
type Reason string

const (
	ReasonManual     Reason = "manual"
	ReasonBulk       Reason = "bulk"
	ReasonStaleCheck Reason = "stale_check"
)

// ParseReason maps unknown or empty reasons to ReasonManual.
func ParseReason(raw string) Reason {
	switch r := Reason(raw); r {
	case ReasonManual, ReasonBulk, ReasonStaleCheck:
		return r
	}
	return ReasonManual
}

// Record is the payload shared by the current snapshot and history rows.
type Record struct {
	ID          int64               `json:"id,omitempty"`
	ModelID     int64               `json:"model_id"`
	Marketplace catalog.Marketplace `json:"marketplace"`
	Variant     catalog.VariantKey  `json:"variant_key"`

	pricing.Breakdown

	ShippingMode catalog.ShippingMode `json:"shipping_mode"`
	RateCardID   int64                `json:"rate_card_id"`
	PricingZone  string               `json:"pricing_zone"`

	Reason       Reason    `json:"reason"`
	RunID        string    `json:"run_id"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// Key returns the record's address.
func (r Record) Key() Key {
	return Key{ModelID: r.ModelID, Marketplace: r.Marketplace, Variant: r.Variant}
}

func newRecord(key Key, res pricing.Result) Record {
	return Record{
		ModelID:      key.ModelID,
		Marketplace:  key.Marketplace,
		Variant:      key.Variant,
		Breakdown:    res.Breakdown,
		ShippingMode: res.Shipping.Mode,
		RateCardID:   res.Shipping.RateCardID,
		PricingZone:  res.Shipping.PricingZone,
	}
}
