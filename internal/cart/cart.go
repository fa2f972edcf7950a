package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// DefaultMaxQuantityPerItem caps a single line's quantity when no explicit
// ceiling is configured.
const DefaultMaxQuantityPerItem = 999

// Product is the inventory provider's view of a sellable item.
type Product struct {
	ID             uuid.UUID
	Name           string
	SKU            string
	Category       string
	SalePrice      decimal.Decimal
	WholesalePrice *decimal.Decimal
	Stock          int
}

// Provider resolves products and answers stock questions. Implementations
// must treat both calls as read-only; the cart never mutates provider data.
type Provider interface {
	Resolve(ctx context.Context, id uuid.UUID) (Product, error)
	HasStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

// Line is one product's presence in the cart. Prices are captured at add
// time; Name, SKU and Category are opaque display strings.
type Line struct {
	ProductID       uuid.UUID        `json:"productId"`
	Name            string           `json:"name"`
	SKU             string           `json:"sku"`
	Category        string           `json:"category"`
	UnitPrice       decimal.Decimal  `json:"unitPrice"`
	WholesalePrice  *decimal.Decimal `json:"wholesalePrice,omitempty"`
	Qty             int              `json:"qty"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
	StockAtAdd      int              `json:"stockAtAdd"`
}

// State is the cart's plain-data projection used for snapshots and by
// checkout. The engine owns no serialization format beyond this shape.
type State struct {
	Lines                  []Line          `json:"lines"`
	Wholesale              bool            `json:"wholesale"`
	GeneralDiscountPercent decimal.Decimal `json:"generalDiscountPercent"`
}

// Cart holds the register's line items in insertion order plus the
// session-wide wholesale toggle and general discount. Mutations are
// all-or-nothing: a failed operation leaves the cart untouched. The cart
// performs no internal locking; callers serialize access (see Store).
type Cart struct {
	lines           []Line
	wholesale       bool
	generalDiscount decimal.Decimal
	maxQty          int
}

// New constructs an empty cart. maxQuantityPerItem <= 0 selects the default
// ceiling.
func New(maxQuantityPerItem int) *Cart {
	if maxQuantityPerItem <= 0 {
		maxQuantityPerItem = DefaultMaxQuantityPerItem
	}
	return &Cart{maxQty: maxQuantityPerItem}
}

// FromState rebuilds a cart from a snapshot, dropping any non-positive
// quantities and clamping percents so the invariants hold again.
func FromState(st State, maxQuantityPerItem int) *Cart {
	c := New(maxQuantityPerItem)
	c.wholesale = st.Wholesale
	c.generalDiscount = pricing.ClampPercent(st.GeneralDiscountPercent)
	for _, ln := range st.Lines {
		if ln.Qty <= 0 {
			continue
		}
		ln.DiscountPercent = pricing.ClampPercent(ln.DiscountPercent)
		if c.find(ln.ProductID) != nil {
			continue
		}
		c.lines = append(c.lines, ln)
	}
	return c
}

func (c *Cart) find(id uuid.UUID) *Line {
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			return &c.lines[i]
		}
	}
	return nil
}

// AddLine resolves the product and inserts a new line or merges the quantity
// into an existing one. The resulting absolute quantity is validated against
// the per-item ceiling and the provider's stock before anything is committed.
func (c *Cart) AddLine(ctx context.Context, inv Provider, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return &InvalidQuantityError{Qty: qty}
	}
	product, err := inv.Resolve(ctx, productID)
	if err != nil {
		return fmt.Errorf("resolve product: %w", err)
	}

	existing := c.find(productID)
	target := qty
	if existing != nil {
		target += existing.Qty
	}
	if target > c.maxQty {
		return &InvalidQuantityError{Qty: target, Limit: c.maxQty}
	}
	if err := checkStock(ctx, inv, productID, target); err != nil {
		return err
	}

	if existing != nil {
		existing.Qty = target
		existing.DiscountPercent = pricing.ResolveDiscount(existing.DiscountPercent, pricing.VolumeTier(target))
		return nil
	}
	c.lines = append(c.lines, Line{
		ProductID:       productID,
		Name:            product.Name,
		SKU:             product.SKU,
		Category:        product.Category,
		UnitPrice:       product.SalePrice,
		WholesalePrice:  product.WholesalePrice,
		Qty:             target,
		DiscountPercent: pricing.VolumeTier(target),
		StockAtAdd:      product.Stock,
	})
	return nil
}

// RemoveLine deletes the line for the product. Removing an absent product is
// a no-op.
func (c *Cart) RemoveLine(id uuid.UUID) {
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// UpdateQuantity sets the line's absolute quantity. Zero or negative removes
// the line. The new quantity is re-validated against stock, and the line
// discount is re-resolved against the volume tier: the tier can raise the
// current discount but never lowers it.
func (c *Cart) UpdateQuantity(ctx context.Context, inv Provider, id uuid.UUID, qty int) error {
	if qty <= 0 {
		c.RemoveLine(id)
		return nil
	}
	line := c.find(id)
	if line == nil {
		return ErrNotFound
	}
	if qty > c.maxQty {
		return &InvalidQuantityError{Qty: qty, Limit: c.maxQty}
	}
	if err := checkStock(ctx, inv, id, qty); err != nil {
		return err
	}
	line.Qty = qty
	line.DiscountPercent = pricing.ResolveDiscount(line.DiscountPercent, pricing.VolumeTier(qty))
	return nil
}

// UpdateLineDiscount overwrites the line's discount percent, clamped to
// [0,100]. A manual value below the quantity's volume tier is accepted; the
// next quantity change re-raises it to the tier.
func (c *Cart) UpdateLineDiscount(id uuid.UUID, percent decimal.Decimal) error {
	line := c.find(id)
	if line == nil {
		return ErrNotFound
	}
	line.DiscountPercent = pricing.ClampPercent(percent)
	return nil
}

// SetWholesale toggles the session-wide wholesale price basis.
func (c *Cart) SetWholesale(enabled bool) {
	c.wholesale = enabled
}

// SetGeneralDiscount sets the cart-wide discount percent, clamped to [0,100].
func (c *Cart) SetGeneralDiscount(percent decimal.Decimal) {
	c.generalDiscount = pricing.ClampPercent(percent)
}

// Clear empties the cart. An unforced clear of a non-empty cart returns
// ErrNotEmpty so the caller can confirm first.
func (c *Cart) Clear(force bool) error {
	if !force && len(c.lines) > 0 {
		return ErrNotEmpty
	}
	c.lines = nil
	return nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len reports the number of lines.
func (c *Cart) Len() int { return len(c.lines) }

// ItemCount reports the summed quantity across lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, ln := range c.lines {
		n += ln.Qty
	}
	return n
}

// IsWholesale reports the wholesale toggle.
func (c *Cart) IsWholesale() bool { return c.wholesale }

// GeneralDiscountPercent reports the cart-wide discount percent.
func (c *Cart) GeneralDiscountPercent() decimal.Decimal { return c.generalDiscount }

// State returns the plain-data projection of the cart.
func (c *Cart) State() State {
	return State{
		Lines:                  c.Lines(),
		Wholesale:              c.wholesale,
		GeneralDiscountPercent: c.generalDiscount,
	}
}

// Totals projects the cart onto the pricing engine. It never fails; an empty
// cart produces all-zero totals.
func (c *Cart) Totals(cfg pricing.Config) pricing.Summary {
	lines := make([]pricing.Line, 0, len(c.lines))
	for _, ln := range c.lines {
		lines = append(lines, pricing.Line{
			Qty:             ln.Qty,
			UnitPrice:       ln.UnitPrice,
			WholesalePrice:  ln.WholesalePrice,
			DiscountPercent: ln.DiscountPercent,
		})
	}
	return pricing.Compute(lines, c.wholesale, c.generalDiscount, cfg)
}

// CanSetQuantity reports whether the provider's stock covers the absolute
// target quantity. It is side-effect free.
func CanSetQuantity(ctx context.Context, inv Provider, id uuid.UUID, qty int) bool {
	ok, err := inv.HasStock(ctx, id, qty)
	return err == nil && ok
}

// checkStock gates a mutation on the absolute target quantity. On shortage
// it resolves the product once more to report the available figure.
func checkStock(ctx context.Context, inv Provider, id uuid.UUID, qty int) error {
	ok, err := inv.HasStock(ctx, id, qty)
	if err != nil {
		return fmt.Errorf("check stock: %w", err)
	}
	if ok {
		return nil
	}
	available := 0
	if p, err := inv.Resolve(ctx, id); err == nil {
		available = p.Stock
	}
	return &InsufficientStockError{ProductID: id, Requested: qty, Available: available}
}
