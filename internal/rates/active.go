// Package rates resolves the configuration in force at a point in time:
// material role assignments, shipping profiles and rates, marketplace fees,
// labor and profit settings.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
)

// ErrNotConfigured is matched by every NotConfiguredError.
var ErrNotConfigured = errors.New("not configured")

// NotConfiguredError reports that no active row exists for a required input.
type NotConfiguredError struct {
	Kind string
	Key  string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("no active %s configured for %s", e.Kind, e.Key)
}

func (e *NotConfiguredError) Unwrap() error {
	return ErrNotConfigured
}

// MissingShippingRateError reports a weight or zone outside the configured tiers.
type MissingShippingRateError struct {
	RateCardID int64
	TierID     int64
	WeightOz   float64
	Zone       string
}

func (e *MissingShippingRateError) Error() string {
	if e.TierID == 0 {
		return fmt.Sprintf("rate card %d has no tier for %.2f oz", e.RateCardID, e.WeightOz)
	}
	return fmt.Sprintf("rate card %d tier %d has no rate for zone %q", e.RateCardID, e.TierID, e.Zone)
}

// Temporal is a row with a validity window.
type Temporal interface {
	Window() (id int64, effective time.Time, end *time.Time)
}

// ResolveActive returns the candidate in force at asOf: effective on or before
// asOf and with no end date or one after asOf. When several qualify the latest
// effective date wins, then the highest id.
func ResolveActive[T Temporal](candidates []T, asOf time.Time) (T, bool) {
	var (
		best      T
		bestID    int64
		bestStart time.Time
		found     bool
	)
	for _, c := range candidates {
		id, start, end := c.Window()
		if start.After(asOf) {
			continue
		}
		if end != nil && !end.After(asOf) {
			continue
		}
		if !found || start.After(bestStart) || (start.Equal(bestStart) && id > bestID) {
			best, bestID, bestStart, found = c, id, start, true
		}
	}
	return best, found
}

// FindTier returns the tier whose [min_oz, max_oz) range contains weightOz.
func FindTier(tiers []catalog.ShippingRateTier, weightOz float64) (catalog.ShippingRateTier, bool) {
	ordered := make([]catalog.ShippingRateTier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].MinOz < ordered[j].MinOz })

	for _, t := range ordered {
		if t.Contains(weightOz) {
			return t, true
		}
	}
	return catalog.ShippingRateTier{}, false
}

// FindZoneRate returns the rate for zone among a tier's zone rates.
func FindZoneRate(rates []catalog.ShippingZoneRate, zone string) (catalog.ShippingZoneRate, bool) {
	for _, r := range rates {
		if r.Zone == zone {
			return r, true
		}
	}
	return catalog.ShippingZoneRate{}, false
}
