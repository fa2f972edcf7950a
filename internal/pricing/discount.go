package pricing

import "github.com/shopspring/decimal"

// Volume tier thresholds, evaluated highest first. Lower bounds are
// inclusive and the tiers do not overlap.
const (
	tierLargeQty  = 50
	tierMediumQty = 20
	tierSmallQty  = 10
)

var (
	tierLarge  = decimal.NewFromInt(15)
	tierMedium = decimal.NewFromInt(10)
	tierSmall  = decimal.NewFromInt(5)
)

// VolumeTier returns the automatic discount percent for a line quantity.
func VolumeTier(qty int) decimal.Decimal {
	switch {
	case qty >= tierLargeQty:
		return tierLarge
	case qty >= tierMediumQty:
		return tierMedium
	case qty >= tierSmallQty:
		return tierSmall
	default:
		return decimal.Zero
	}
}

// ResolveDiscount merges a manual line discount with the automatic volume
// tier: the larger of the two wins. Manual discounts are never reduced by a
// quantity change, but the tier can raise them.
func ResolveDiscount(manual, auto decimal.Decimal) decimal.Decimal {
	if auto.GreaterThan(manual) {
		return auto
	}
	return manual
}

// ClampPercent forces a percentage into [0, 100]. Out-of-range input is a
// policy-level clamp, not an error.
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
