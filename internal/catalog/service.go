package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/cart"
)

// Querier is the slice of Store the service needs; tests swap in a stub.
type Querier interface {
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	GetStock(ctx context.Context, id uuid.UUID) (int, error)
	List(ctx context.Context, f ListFilter) ([]Product, int, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error)
}

// Service fronts the product store with a read-through cache and adapts it
// to the cart's inventory provider contract. Product resolution is served
// from cache; stock checks always hit the store so the gate sees current
// levels.
type Service struct {
	Store Querier
	Cache *Cache
	Log   zerolog.Logger
}

func NewService(store Querier, cache *Cache, log zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{Store: store, Cache: cache, Log: log}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	key := productKey(id)
	var cached Product
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Str("product_id", id.String()).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.Cache.SetJSON(ctx, key, p); err != nil {
		s.Log.Warn().Err(err).Str("product_id", id.String()).Msg("catalog cache write failed")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Product, int, error) {
	return s.Store.List(ctx, f)
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	return s.Store.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, p Product) (Product, error) {
	out, err := s.Store.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, p.ID)
	return out, nil
}

// Restock applies a signed stock delta from the back office.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	stock, err := s.Store.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, id)
	return stock, nil
}

// Invalidate drops the cached product, e.g. after checkout changed stock.
func (s *Service) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.Cache.Delete(ctx, productKey(id)); err != nil {
		s.Log.Warn().Err(err).Str("product_id", id.String()).Msg("catalog cache invalidate failed")
	}
}

// Resolve implements cart.Provider.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (cart.Product, error) {
	p, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return cart.Product{}, cart.ErrNotFound
	}
	if err != nil {
		return cart.Product{}, fmt.Errorf("resolve product: %w", err)
	}
	return cart.Product{
		ID:             p.ID,
		Name:           p.Name,
		SKU:            p.SKU,
		Category:       p.Category,
		SalePrice:      p.SalePrice,
		WholesalePrice: p.WholesalePrice,
		Stock:          p.Stock,
	}, nil
}

// HasStock implements cart.Provider. It bypasses the cache on purpose: the
// stock gate must compare against the live level, not a snapshot.
func (s *Service) HasStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	stock, err := s.Store.GetStock(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, cart.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return stock >= qty, nil
}
