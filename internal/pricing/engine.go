package pricing

import "github.com/shopspring/decimal"

// DefaultWholesaleRate is the fallback markdown applied when a line has no
// explicit wholesale price.
const DefaultWholesaleRate = "0.10"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Line describes a cart line used for totals calculation. UnitPrice is the
// retail unit price; WholesalePrice may be nil, in which case the wholesale
// basis is derived from UnitPrice and the configured wholesale rate.
type Line struct {
	Qty             int
	UnitPrice       decimal.Decimal
	WholesalePrice  *decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Config carries the session-wide pricing parameters.
type Config struct {
	// TaxRate is a fraction, e.g. 0.19 for 19%.
	TaxRate decimal.Decimal
	// PricesIncludeTax selects tax extraction over tax addition.
	PricesIncludeTax bool
	// WholesaleRate is the fallback wholesale markdown fraction. Zero means
	// DefaultWholesaleRate.
	WholesaleRate decimal.Decimal
}

func (c Config) wholesaleRate() decimal.Decimal {
	if c.WholesaleRate.IsPositive() {
		return c.WholesaleRate
	}
	return decimal.RequireFromString(DefaultWholesaleRate)
}

// Summary aggregates the computed totals. All amounts are rounded to cents.
type Summary struct {
	// Subtotal is the post-line-discount sum on the applied price basis.
	Subtotal decimal.Decimal
	// SubtotalRetail is the same sum always on the retail basis, used to
	// measure wholesale savings.
	SubtotalRetail decimal.Decimal
	// LineDiscounts is the sum of per-line discount amounts.
	LineDiscounts decimal.Decimal
	// GeneralDiscount is the cart-wide discount amount taken off Subtotal.
	GeneralDiscount decimal.Decimal
	// WholesaleDiscount is the saving attributable to wholesale pricing.
	WholesaleDiscount decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	TotalSavings      decimal.Decimal
	ItemCount         int
}

// round2 rounds half-up to cents. Amounts here are never negative, so
// decimal's half-away-from-zero rounding is exactly half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute derives cart totals from the lines and session state. It is a pure
// projection: any syntactically valid input yields a Summary, an empty cart
// yields all zeros. Rounding to cents happens at each aggregation step; the
// step order is part of the contract.
func Compute(lines []Line, wholesale bool, generalDiscountPercent decimal.Decimal, cfg Config) Summary {
	general := ClampPercent(generalDiscountPercent)
	rate := cfg.wholesaleRate()

	var (
		subtotal       decimal.Decimal
		subtotalRetail decimal.Decimal
		lineDiscounts  decimal.Decimal
		itemCount      int
	)
	for _, ln := range lines {
		if ln.Qty <= 0 {
			continue
		}
		itemCount += ln.Qty
		qty := decimal.NewFromInt(int64(ln.Qty))
		discount := ClampPercent(ln.DiscountPercent)
		keep := one.Sub(discount.Div(hundred))

		unitApplied := ln.UnitPrice
		if wholesale {
			if ln.WholesalePrice != nil {
				unitApplied = *ln.WholesalePrice
			} else {
				unitApplied = round2(ln.UnitPrice.Mul(one.Sub(rate)))
			}
		}

		subtotal = subtotal.Add(round2(unitApplied.Mul(keep).Mul(qty)))
		// The retail reference is computed even in wholesale mode so the
		// wholesale saving can be reported against it.
		subtotalRetail = subtotalRetail.Add(round2(ln.UnitPrice.Mul(keep).Mul(qty)))
		lineDiscounts = lineDiscounts.Add(round2(unitApplied.Mul(discount.Div(hundred)).Mul(qty)))
	}
	subtotal = round2(subtotal)
	subtotalRetail = round2(subtotalRetail)
	lineDiscounts = round2(lineDiscounts)

	generalAmount := round2(subtotal.Mul(general.Div(hundred)))
	afterGeneral := round2(subtotal.Sub(generalAmount))
	generalAmountRetail := round2(subtotalRetail.Mul(general.Div(hundred)))
	afterGeneralRetail := round2(subtotalRetail.Sub(generalAmountRetail))

	wholesaleSavings := decimal.Zero
	if diff := afterGeneralRetail.Sub(afterGeneral); diff.IsPositive() {
		wholesaleSavings = round2(diff)
	}

	var tax, total decimal.Decimal
	if cfg.PricesIncludeTax {
		tax = round2(afterGeneral.Mul(cfg.TaxRate.Div(one.Add(cfg.TaxRate))))
		total = afterGeneral
	} else {
		tax = round2(afterGeneral.Mul(cfg.TaxRate))
		total = round2(afterGeneral.Add(tax))
	}

	return Summary{
		Subtotal:          subtotal,
		SubtotalRetail:    subtotalRetail,
		LineDiscounts:     lineDiscounts,
		GeneralDiscount:   generalAmount,
		WholesaleDiscount: wholesaleSavings,
		Tax:               tax,
		Total:             total,
		TotalSavings:      round2(lineDiscounts.Add(generalAmount).Add(wholesaleSavings)),
		ItemCount:         itemCount,
	}
}
