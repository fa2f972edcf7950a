package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

type stubProvider struct {
	products map[uuid.UUID]cart.Product
}

func (p stubProvider) Resolve(_ context.Context, id uuid.UUID) (cart.Product, error) {
	product, ok := p.products[id]
	if !ok {
		return cart.Product{}, cart.ErrNotFound
	}
	return product, nil
}

func (p stubProvider) HasStock(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	product, ok := p.products[id]
	if !ok {
		return false, cart.ErrNotFound
	}
	return product.Stock >= qty, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newProvider(products ...cart.Product) stubProvider {
	p := stubProvider{products: make(map[uuid.UUID]cart.Product)}
	for _, product := range products {
		p.products[product.ID] = product
	}
	return p
}

func product(price string, stock int) cart.Product {
	return cart.Product{
		ID:        uuid.New(),
		Name:      "Kopi Gayo 250g",
		SKU:       "KG-250",
		Category:  "coffee",
		SalePrice: dec(price),
		Stock:     stock,
	}
}

func TestAddLineCreatesLine(t *testing.T) {
	p := product("25000", 40)
	inv := newProvider(p)
	c := cart.New(0)

	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 2))
	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, p.ID, lines[0].ProductID)
	require.Equal(t, 2, lines[0].Qty)
	require.Equal(t, p.Name, lines[0].Name)
	require.Equal(t, 40, lines[0].StockAtAdd)
	require.True(t, lines[0].UnitPrice.Equal(dec("25000")))
	require.True(t, lines[0].DiscountPercent.IsZero())
}

func TestAddLineMergesQuantity(t *testing.T) {
	p := product("100", 100)
	inv := newProvider(p)
	c := cart.New(0)

	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 15))
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 10))
	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 25, lines[0].Qty)
	// 25 units lands in the 20+ volume tier.
	require.True(t, lines[0].DiscountPercent.Equal(dec("10")))
}

func TestAddLineUnknownProduct(t *testing.T) {
	inv := newProvider()
	c := cart.New(0)
	err := c.AddLine(context.Background(), inv, uuid.New(), 1)
	require.ErrorIs(t, err, cart.ErrNotFound)
	require.Zero(t, c.Len())
}

func TestAddLineInsufficientStockLeavesCartUnchanged(t *testing.T) {
	p := product("100", 5)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 3))
	before := c.Lines()

	err := c.AddLine(context.Background(), inv, p.ID, 3)
	var stockErr *cart.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 6, stockErr.Requested)
	require.Equal(t, 5, stockErr.Available)
	require.Equal(t, before, c.Lines())
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	p := product("100", 5)
	inv := newProvider(p)
	c := cart.New(0)
	var qtyErr *cart.InvalidQuantityError
	require.ErrorAs(t, c.AddLine(context.Background(), inv, p.ID, 0), &qtyErr)
	require.ErrorAs(t, c.AddLine(context.Background(), inv, p.ID, -4), &qtyErr)
	require.Zero(t, c.Len())
}

func TestAddLineRejectsQuantityAboveCeiling(t *testing.T) {
	p := product("100", 1000)
	inv := newProvider(p)
	c := cart.New(10)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 10))

	err := c.AddLine(context.Background(), inv, p.ID, 1)
	var qtyErr *cart.InvalidQuantityError
	require.ErrorAs(t, err, &qtyErr)
	require.Equal(t, 10, qtyErr.Limit)
	require.Equal(t, 10, c.Lines()[0].Qty)
}

func TestRemoveLineIdempotent(t *testing.T) {
	p := product("100", 10)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 1))

	c.RemoveLine(p.ID)
	require.Zero(t, c.Len())
	c.RemoveLine(p.ID)
	require.Zero(t, c.Len())
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	p := product("100", 10)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 2))

	require.NoError(t, c.UpdateQuantity(context.Background(), inv, p.ID, 0))
	require.Zero(t, c.Len())
	// Removal by zero quantity is idempotent, matching RemoveLine.
	require.NoError(t, c.UpdateQuantity(context.Background(), inv, p.ID, -1))
}

func TestUpdateQuantityUnknownLine(t *testing.T) {
	inv := newProvider()
	c := cart.New(0)
	require.ErrorIs(t, c.UpdateQuantity(context.Background(), inv, uuid.New(), 3), cart.ErrNotFound)
}

func TestUpdateQuantityAppliesVolumeTier(t *testing.T) {
	p := product("100", 200)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 1))

	require.NoError(t, c.UpdateQuantity(context.Background(), inv, p.ID, 50))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("15")))

	// Lowering the quantity never lowers the discount.
	require.NoError(t, c.UpdateQuantity(context.Background(), inv, p.ID, 5))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("15")))
}

func TestManualDiscountBelowTierIsReRaisedByQuantityChange(t *testing.T) {
	p := product("100", 200)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 25))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("10")))

	// Manual override below the tier is accepted as-is.
	require.NoError(t, c.UpdateLineDiscount(p.ID, dec("3")))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("3")))

	// The next quantity change resolves against the tier again.
	require.NoError(t, c.UpdateQuantity(context.Background(), inv, p.ID, 26))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("10")))
}

func TestUpdateLineDiscountClamps(t *testing.T) {
	p := product("100", 10)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 1))

	require.NoError(t, c.UpdateLineDiscount(p.ID, dec("120")))
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("100")))
	require.NoError(t, c.UpdateLineDiscount(p.ID, dec("-5")))
	require.True(t, c.Lines()[0].DiscountPercent.IsZero())
	require.ErrorIs(t, c.UpdateLineDiscount(uuid.New(), dec("5")), cart.ErrNotFound)
}

func TestUpdateQuantityInsufficientStock(t *testing.T) {
	p := product("100", 5)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 2))

	err := c.UpdateQuantity(context.Background(), inv, p.ID, 8)
	var stockErr *cart.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 2, c.Lines()[0].Qty)
}

func TestClearRequiresConfirmation(t *testing.T) {
	p := product("100", 10)
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 1))

	require.ErrorIs(t, c.Clear(false), cart.ErrNotEmpty)
	require.Equal(t, 1, c.Len())
	require.NoError(t, c.Clear(true))
	require.Zero(t, c.Len())
	require.NoError(t, c.Clear(false))
}

func TestSetGeneralDiscountClamps(t *testing.T) {
	c := cart.New(0)
	c.SetGeneralDiscount(dec("150"))
	require.True(t, c.GeneralDiscountPercent().Equal(dec("100")))
	c.SetGeneralDiscount(dec("-1"))
	require.True(t, c.GeneralDiscountPercent().IsZero())
}

func TestTotalsEmptyCart(t *testing.T) {
	c := cart.New(0)
	sum := c.Totals(pricing.Config{TaxRate: dec("0.19"), PricesIncludeTax: true})
	require.True(t, sum.Total.IsZero())
	require.True(t, sum.Tax.IsZero())
	require.Zero(t, sum.ItemCount)
}

func TestTotalsWholesaleSession(t *testing.T) {
	wholesale := dec("80")
	p := cart.Product{
		ID:             uuid.New(),
		Name:           "Gula Aren 500g",
		SKU:            "GA-500",
		Category:       "pantry",
		SalePrice:      dec("100"),
		WholesalePrice: &wholesale,
		Stock:          50,
	}
	inv := newProvider(p)
	c := cart.New(0)
	require.NoError(t, c.AddLine(context.Background(), inv, p.ID, 2))
	c.SetWholesale(true)

	sum := c.Totals(pricing.Config{TaxRate: dec("0.19"), PricesIncludeTax: true})
	require.Equal(t, "160.00", sum.Subtotal.StringFixed(2))
	require.Equal(t, "40.00", sum.WholesaleDiscount.StringFixed(2))
}

func TestFromStateRestoresInvariants(t *testing.T) {
	id := uuid.New()
	st := cart.State{
		Lines: []cart.Line{
			{ProductID: id, Qty: 2, UnitPrice: dec("10"), DiscountPercent: dec("150")},
			{ProductID: id, Qty: 1, UnitPrice: dec("10")},
			{ProductID: uuid.New(), Qty: 0, UnitPrice: dec("10")},
		},
		Wholesale:              true,
		GeneralDiscountPercent: dec("-3"),
	}
	c := cart.FromState(st, 0)
	require.Equal(t, 1, c.Len())
	require.True(t, c.Lines()[0].DiscountPercent.Equal(dec("100")))
	require.True(t, c.IsWholesale())
	require.True(t, c.GeneralDiscountPercent().IsZero())
}

func TestCanSetQuantity(t *testing.T) {
	p := product("100", 5)
	inv := newProvider(p)
	require.True(t, cart.CanSetQuantity(context.Background(), inv, p.ID, 5))
	require.False(t, cart.CanSetQuantity(context.Background(), inv, p.ID, 6))
	require.False(t, cart.CanSetQuantity(context.Background(), inv, uuid.New(), 1))
}

func TestProviderErrorPropagates(t *testing.T) {
	inv := failingProvider{err: errors.New("inventory offline")}
	c := cart.New(0)
	err := c.AddLine(context.Background(), inv, uuid.New(), 1)
	require.ErrorContains(t, err, "inventory offline")
}

type failingProvider struct {
	err error
}

func (p failingProvider) Resolve(context.Context, uuid.UUID) (cart.Product, error) {
	return cart.Product{}, p.err
}

func (p failingProvider) HasStock(context.Context, uuid.UUID, int) (bool, error) {
	return false, p.err
}
