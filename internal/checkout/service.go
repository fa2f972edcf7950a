package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

var (
	// ErrEmptyCart rejects checkout of a cart with no lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrSaleNotFound is returned for unknown sale ids.
	ErrSaleNotFound = errors.New("checkout: sale not found")
	// ErrAlreadyVoided rejects voiding a sale twice.
	ErrAlreadyVoided = errors.New("checkout: sale already voided")
)

// Sale is a finalized transaction, priced at the moment of checkout.
type SaleLine struct {
	ProductID       uuid.UUID       `json:"productId"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Qty             int             `json:"qty"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	LineTotal       decimal.Decimal `json:"lineTotal"`
}

type Sale struct {
	ID                uuid.UUID       `json:"id"`
	CartID            string          `json:"cartId"`
	Status            string          `json:"status"`
	Wholesale         bool            `json:"wholesale"`
	Currency          string          `json:"currency"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	LineDiscounts     decimal.Decimal `json:"lineDiscounts"`
	GeneralDiscount   decimal.Decimal `json:"generalDiscount"`
	WholesaleDiscount decimal.Decimal `json:"wholesaleDiscount"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	TotalSavings      decimal.Decimal `json:"totalSavings"`
	ItemCount         int             `json:"itemCount"`
	Lines             []SaleLine      `json:"lines"`
	CreatedAt         time.Time       `json:"createdAt"`
	VoidedAt          *time.Time      `json:"voidedAt,omitempty"`
}

// StockLevel reports a product's stock after checkout decremented it.
type StockLevel struct {
	ProductID uuid.UUID
	Remaining int
}

// Persister writes sales atomically: the sale rows and the stock decrements
// commit together or not at all. A shortage surfaces as
// *cart.InsufficientStockError and leaves nothing persisted.
type Persister interface {
	Persist(ctx context.Context, sale Sale) (Sale, []StockLevel, error)
	Get(ctx context.Context, id uuid.UUID) (Sale, error)
	Void(ctx context.Context, id uuid.UUID) (Sale, error)
}

// CacheInvalidator drops cached products whose stock changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

const (
	defaultLockTTL           = 10 * time.Second
	defaultLowStockThreshold = 5
)

// Service finalizes carts into sales. The per-cart Redis lock serializes
// checkout against concurrent mutations from another process; within one
// process the cart store's own serialization already applies.
type Service struct {
	Carts             *cart.Store
	Sales             Persister
	Locks             lock.Locker
	Cache             CacheInvalidator
	Events            *events.Bus
	Pricing           pricing.Config
	Currency          string
	LockTTL           time.Duration
	LowStockThreshold int
	Log               zerolog.Logger
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return defaultLockTTL
	}
	return s.LockTTL
}

func (s *Service) lowStock() int {
	if s.LowStockThreshold <= 0 {
		return defaultLowStockThreshold
	}
	return s.LowStockThreshold
}

// Create finalizes the cart: prices it, persists the sale with its stock
// decrements in one transaction, then clears the cart. On any failure the
// cart is left exactly as it was.
func (s *Service) Create(ctx context.Context, cartID string) (Sale, error) {
	if s == nil || s.Carts == nil || s.Sales == nil {
		return Sale{}, errors.New("checkout service not configured")
	}
	var out Sale
	run := func(ctx context.Context) error {
		return s.Carts.With(ctx, cartID, func(c *cart.Cart) error {
			if c.Len() == 0 {
				return ErrEmptyCart
			}
			sale, levels, err := s.persist(ctx, cartID, c)
			if err != nil {
				return err
			}
			if err := c.Clear(true); err != nil {
				return err
			}
			out = sale
			s.afterCommit(ctx, sale, levels)
			return nil
		})
	}

	var err error
	if s.Locks.R != nil {
		err = s.Locks.WithLock(ctx, "kasir:lock:checkout:"+cartID, s.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		obs.IncCheckout("error")
		return Sale{}, err
	}
	obs.IncCheckout("ok")
	return out, nil
}

func (s *Service) persist(ctx context.Context, cartID string, c *cart.Cart) (Sale, []StockLevel, error) {
	summary := c.Totals(s.Pricing)
	lines := c.Lines()
	sale := Sale{
		CartID:            cartID,
		Status:            "completed",
		Wholesale:         c.IsWholesale(),
		Currency:          s.Currency,
		Subtotal:          summary.Subtotal,
		LineDiscounts:     summary.LineDiscounts,
		GeneralDiscount:   summary.GeneralDiscount,
		WholesaleDiscount: summary.WholesaleDiscount,
		Tax:               summary.Tax,
		Total:             summary.Total,
		TotalSavings:      summary.TotalSavings,
		ItemCount:         summary.ItemCount,
		Lines:             make([]SaleLine, 0, len(lines)),
	}
	for _, l := range lines {
		sale.Lines = append(sale.Lines, SaleLine{
			ProductID:       l.ProductID,
			Name:            l.Name,
			SKU:             l.SKU,
			Qty:             l.Qty,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			LineTotal:       lineTotal(l, c.IsWholesale(), s.Pricing),
		})
	}
	persisted, levels, err := s.Sales.Persist(ctx, sale)
	if err != nil {
		return Sale{}, nil, fmt.Errorf("persist sale: %w", err)
	}
	return persisted, levels, nil
}

// lineTotal prices a single line in isolation, using the same arithmetic as
// the cart summary so receipts add up.
func lineTotal(l cart.Line, wholesale bool, cfg pricing.Config) decimal.Decimal {
	one := pricing.Line{
		Qty:             l.Qty,
		UnitPrice:       l.UnitPrice,
		WholesalePrice:  l.WholesalePrice,
		DiscountPercent: l.DiscountPercent,
	}
	return pricing.Compute([]pricing.Line{one}, wholesale, decimal.Zero, cfg).Subtotal
}

func (s *Service) afterCommit(ctx context.Context, sale Sale, levels []StockLevel) {
	total, _ := sale.Total.Float64()
	obs.ObserveSaleAmount(total)

	ids := make([]uuid.UUID, 0, len(levels))
	for _, lvl := range levels {
		ids = append(ids, lvl.ProductID)
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, ids...)
	}

	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, events.TopicSaleCompleted, sale.ID, map[string]any{
		"saleId":    sale.ID,
		"cartId":    sale.CartID,
		"total":     sale.Total,
		"itemCount": sale.ItemCount,
	}); err != nil {
		s.Log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("emit sale.completed failed")
	}
	for _, lvl := range levels {
		if lvl.Remaining > s.lowStock() {
			continue
		}
		if _, err := s.Events.Emit(ctx, events.TopicStockLow, lvl.ProductID, map[string]any{
			"productId": lvl.ProductID,
			"stock":     lvl.Remaining,
		}); err != nil {
			s.Log.Warn().Err(err).Str("product_id", lvl.ProductID.String()).Msg("emit stock.low failed")
		}
	}
}

// Get returns a finalized sale with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	if s == nil || s.Sales == nil {
		return Sale{}, errors.New("checkout service not configured")
	}
	return s.Sales.Get(ctx, id)
}

// Void reverses a completed sale: stock is restored and the sale is marked
// voided. The sale rows stay for reporting.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (Sale, error) {
	if s == nil || s.Sales == nil {
		return Sale{}, errors.New("checkout service not configured")
	}
	sale, err := s.Sales.Void(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	ids := make([]uuid.UUID, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		ids = append(ids, l.ProductID)
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, ids...)
	}
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicSaleVoided, sale.ID, map[string]any{
			"saleId": sale.ID,
			"total":  sale.Total,
		}); err != nil {
			s.Log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("emit sale.voided failed")
		}
	}
	return sale, nil
}
