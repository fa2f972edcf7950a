package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a product id has no active row.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrInsufficientStock is returned when a decrement would oversell.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// Product is the catalog row. Prices are stored as NUMERIC(12,2);
// WholesalePrice is nil for products without a dedicated wholesale price.
type Product struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	SKU            string           `json:"sku"`
	Category       string           `json:"category"`
	SalePrice      decimal.Decimal  `json:"salePrice"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice,omitempty"`
	Stock          int              `json:"stock"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Query    string
	Category string
	Limit    int
	Offset   int
}

// Store reads and writes products directly against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, name, sku, category, sale_price::text, wholesale_price::text, stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p         Product
		sale      string
		wholesale *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &sale, &wholesale, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.SalePrice, err = decimal.NewFromString(sale)
	if err != nil {
		return Product{}, fmt.Errorf("parse sale_price: %w", err)
	}
	if wholesale != nil {
		w, err := decimal.NewFromString(*wholesale)
		if err != nil {
			return Product{}, fmt.Errorf("parse wholesale_price: %w", err)
		}
		p.WholesalePrice = &w
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND active`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetStock reads the current stock level without going through any cache.
func (s *Store) GetStock(ctx context.Context, id uuid.UUID) (int, error) {
	var stock int
	err := s.Pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = $1 AND active`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Product, int, error) {
	where := []string{"active"}
	args := []any{}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.Pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE `+cond+
			fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]Product, 0, f.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return items, total, nil
}

func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var wholesale *string
	if p.WholesalePrice != nil {
		w := p.WholesalePrice.StringFixed(2)
		wholesale = &w
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO products (id, name, sku, category, sale_price, wholesale_price, stock, active)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, TRUE)
		 RETURNING `+productColumns,
		p.ID, p.Name, p.SKU, p.Category, p.SalePrice.StringFixed(2), wholesale, p.Stock)
	out, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, p Product) (Product, error) {
	var wholesale *string
	if p.WholesalePrice != nil {
		w := p.WholesalePrice.StringFixed(2)
		wholesale = &w
	}
	row := s.Pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, sku = $3, category = $4, sale_price = $5::numeric,
		     wholesale_price = $6::numeric, updated_at = now()
		 WHERE id = $1 AND active
		 RETURNING `+productColumns,
		p.ID, p.Name, p.SKU, p.Category, p.SalePrice.StringFixed(2), wholesale)
	out, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return out, nil
}

// AdjustStock applies a signed delta and returns the new level. Deltas that
// would push stock negative are rejected at the database so concurrent
// adjustments cannot oversell.
func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var stock int
	err := s.Pool.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now()
		 WHERE id = $1 AND active AND stock + $2 >= 0
		 RETURNING stock`, id, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}
	return stock, nil
}

// DecrementStock reduces stock inside the caller's transaction. It returns
// the remaining stock, or ErrInsufficientStock when the row is missing or
// the decrement would oversell; the caller decides whether to abort.
func (s *Store) DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) (int, error) {
	var stock int
	err := tx.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND active AND stock >= $2
		 RETURNING stock`, id, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}
