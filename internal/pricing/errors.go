package pricing

import (
	"errors"
	"fmt"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/rates"
)

// Dependency names the configuration a failed calculation was missing.
type Dependency string

const (
	DepShippingProfile    Dependency = "shipping_profile"
	DepRateCard           Dependency = "rate_card"
	DepPricingZone        Dependency = "pricing_zone"
	DepMarketplaceFee     Dependency = "marketplace_fee"
	DepProfitSettings     Dependency = "profit_settings"
	DepMaterialAssignment Dependency = "material_assignment"
	DepLaborSettings      Dependency = "labor_settings"
)

var guidance = map[Dependency]string{
	DepShippingProfile:    "assign a shipping profile to the marketplace",
	DepRateCard:           "configure the rate card tiers and zone rates",
	DepPricingZone:        "set a pricing zone on the marketplace shipping profile",
	DepMarketplaceFee:     "set a marketplace fee rate below 100%",
	DepProfitSettings:     "set a target profit for the variant",
	DepMaterialAssignment: "assign an active material to the role",
	DepLaborSettings:      "configure the labor rate and minutes",
}

// SetupError is a calculation that could not run because configuration is
// missing. It is recoverable per unit of work.
type SetupError struct {
	Dependency  Dependency
	Marketplace catalog.Marketplace
	Variant     catalog.VariantKey
	Detail      string
	Err         error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("pricing setup: missing %s for %s/%s", e.Dependency, e.Marketplace, e.Variant)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Guidance is the end-user hint for fixing the missing dependency.
func (e *SetupError) Guidance() string {
	return guidance[e.Dependency]
}

// AsSetupError returns the SetupError carried by err, if any.
func AsSetupError(err error) (*SetupError, bool) {
	var se *SetupError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// setup wraps configuration errors as a SetupError tagged dep and returns
// every other error unchanged.
func setup(err error, dep Dependency, req Request) error {
	var missing *rates.MissingShippingRateError
	if !errors.Is(err, rates.ErrNotConfigured) && !errors.Is(err, ErrFeeRateOutOfRange) && !errors.As(err, &missing) {
		return err
	}
	return &SetupError{
		Dependency:  dep,
		Marketplace: req.Marketplace,
		Variant:     req.Variant,
		Detail:      err.Error(),
		Err:         err,
	}
}

func missingSetup(dep Dependency, req Request, detail string) error {
	return &SetupError{Dependency: dep, Marketplace: req.Marketplace, Variant: req.Variant, Detail: detail}
}
