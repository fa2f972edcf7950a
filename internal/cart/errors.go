package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound indicates the product could not be resolved, either against
// the inventory provider or among the cart lines.
var ErrNotFound = errors.New("product not found")

// ErrSessionNotFound indicates the register session does not exist or has
// expired.
var ErrSessionNotFound = errors.New("register session not found")

// ErrNotEmpty is returned by an unforced clear of a non-empty cart so the
// caller can ask for confirmation.
var ErrNotEmpty = errors.New("cart not empty")

// InsufficientStockError is returned when the absolute target quantity
// exceeds the stock known to the inventory provider. Available carries the
// stock figure for caller-facing messaging.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// InvalidQuantityError is returned for non-positive quantities where zero is
// not a removal signal, and for quantities above the per-item ceiling. Limit
// is set only in the latter case.
type InvalidQuantityError struct {
	Qty   int
	Limit int
}

func (e *InvalidQuantityError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("quantity %d exceeds per-item limit %d", e.Qty, e.Limit)
	}
	return fmt.Sprintf("quantity must be positive, got %d", e.Qty)
}
