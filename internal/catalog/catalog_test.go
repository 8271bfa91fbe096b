package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantKeyAxes(t *testing.T) {
	cases := []struct {
		key     VariantKey
		padded  bool
		premium bool
		roles   []string
	}{
		{ChoiceNoPadding, false, false, []string{RoleChoiceFabric}},
		{ChoicePadded, true, false, []string{RoleChoiceFabric, RolePadding}},
		{PremiumNoPadding, false, true, []string{RolePremiumFabric}},
		{PremiumPadded, true, true, []string{RolePremiumFabric, RolePadding}},
	}
	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			assert.Equal(t, tc.padded, tc.key.Padded())
			assert.Equal(t, tc.premium, tc.key.Premium())
			assert.Equal(t, tc.roles, tc.key.CostingRoles())
		})
	}
}

func TestParseMarketplaceAndVariant(t *testing.T) {
	mp, err := ParseMarketplace(" eBay ")
	require.NoError(t, err)
	assert.Equal(t, Ebay, mp)

	_, err = ParseMarketplace("walmart")
	assert.Error(t, err)

	v, err := ParseVariantKey("PREMIUM_PADDED")
	require.NoError(t, err)
	assert.Equal(t, PremiumPadded, v)

	_, err = ParseVariantKey("deluxe")
	assert.Error(t, err)
}

func TestModelSurfaceArea(t *testing.T) {
	stored := Model{SurfaceAreaSqIn: 812.5, WidthIn: 1, DepthIn: 1, HeightIn: 1}
	assert.Equal(t, 812.5, stored.SurfaceArea())

	derived := Model{WidthIn: 20, DepthIn: 10, HeightIn: 15}
	// top 200 + front/back 600 + sides 300
	assert.InDelta(t, 1100.0, derived.SurfaceArea(), 1e-9)
}

func TestTierContainsExclusiveUpperBound(t *testing.T) {
	tier := ShippingRateTier{MinOz: 16, MaxOz: 32}
	assert.True(t, tier.Contains(16))
	assert.True(t, tier.Contains(31.99))
	assert.False(t, tier.Contains(32))
	assert.False(t, tier.Contains(15.9))
}

func TestParseShippingMode(t *testing.T) {
	m, err := ParseShippingMode("")
	require.NoError(t, err)
	assert.Equal(t, ShippingCalculated, m)

	m, err = ParseShippingMode("FIXED_CELL")
	require.NoError(t, err)
	assert.Equal(t, ShippingFixedCell, m)

	_, err = ParseShippingMode("freight")
	assert.Error(t, err)
}
