package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/catalog"
)

// PGPersister stores sales in Postgres. Stock decrements ride in the same
// transaction as the sale rows.
type PGPersister struct {
	Pool    *pgxpool.Pool
	Catalog *catalog.Store
}

func (p *PGPersister) Persist(ctx context.Context, sale Sale) (Sale, []StockLevel, error) {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO sales (cart_id, status, wholesale, currency, subtotal, line_discounts,
		    general_discount, wholesale_discount, tax, total, total_savings, item_count)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
		    $9::numeric, $10::numeric, $11::numeric, $12)
		 RETURNING id, created_at`,
		sale.CartID, sale.Status, sale.Wholesale, sale.Currency,
		sale.Subtotal.StringFixed(2), sale.LineDiscounts.StringFixed(2),
		sale.GeneralDiscount.StringFixed(2), sale.WholesaleDiscount.StringFixed(2),
		sale.Tax.StringFixed(2), sale.Total.StringFixed(2),
		sale.TotalSavings.StringFixed(2), sale.ItemCount).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return Sale{}, nil, fmt.Errorf("insert sale: %w", err)
	}

	levels := make([]StockLevel, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		remaining, err := p.Catalog.DecrementStock(ctx, tx, line.ProductID, line.Qty)
		if errors.Is(err, catalog.ErrInsufficientStock) {
			available, stockErr := p.stockInTx(ctx, tx, line.ProductID)
			if stockErr != nil {
				available = 0
			}
			return Sale{}, nil, &cart.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: available,
			}
		}
		if err != nil {
			return Sale{}, nil, err
		}
		levels = append(levels, StockLevel{ProductID: line.ProductID, Remaining: remaining})

		_, err = tx.Exec(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, name, sku, qty, unit_price, discount_percent, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric)`,
			sale.ID, line.ProductID, line.Name, line.SKU, line.Qty,
			line.UnitPrice.StringFixed(2), line.DiscountPercent.String(), line.LineTotal.StringFixed(2))
		if err != nil {
			return Sale{}, nil, fmt.Errorf("insert sale line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, nil, fmt.Errorf("commit sale: %w", err)
	}
	return sale, levels, nil
}

func (p *PGPersister) stockInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	return stock, err
}

func (p *PGPersister) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(p.Pool.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, fmt.Errorf("get sale: %w", err)
	}
	sale.Lines, err = p.lines(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (p *PGPersister) Void(ctx context.Context, id uuid.UUID) (Sale, error) {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sale, err := scanSale(tx.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, fmt.Errorf("lock sale: %w", err)
	}
	if sale.Status == "voided" {
		return Sale{}, ErrAlreadyVoided
	}

	sale.Lines, err = p.linesInTx(ctx, tx, id)
	if err != nil {
		return Sale{}, err
	}
	for _, line := range sale.Lines {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			line.ProductID, line.Qty); err != nil {
			return Sale{}, fmt.Errorf("restore stock: %w", err)
		}
	}
	err = tx.QueryRow(ctx,
		`UPDATE sales SET status = 'voided', voided_at = now() WHERE id = $1
		 RETURNING status, voided_at`, id).Scan(&sale.Status, &sale.VoidedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("void sale: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Sale{}, fmt.Errorf("commit void: %w", err)
	}
	return sale, nil
}

const saleColumns = `id, cart_id, status, wholesale, currency, subtotal::text, line_discounts::text,
	general_discount::text, wholesale_discount::text, tax::text, total::text, total_savings::text,
	item_count, created_at, voided_at`

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s                                                   Sale
		subtotal, lineDisc, genDisc, whDisc, tax, total, sv string
	)
	err := row.Scan(&s.ID, &s.CartID, &s.Status, &s.Wholesale, &s.Currency,
		&subtotal, &lineDisc, &genDisc, &whDisc, &tax, &total, &sv,
		&s.ItemCount, &s.CreatedAt, &s.VoidedAt)
	if err != nil {
		return Sale{}, err
	}
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&s.Subtotal, subtotal}, {&s.LineDiscounts, lineDisc},
		{&s.GeneralDiscount, genDisc}, {&s.WholesaleDiscount, whDisc},
		{&s.Tax, tax}, {&s.Total, total}, {&s.TotalSavings, sv},
	} {
		d, err := decimal.NewFromString(pair.src)
		if err != nil {
			return Sale{}, fmt.Errorf("parse sale amount: %w", err)
		}
		*pair.dst = d
	}
	return s, nil
}

const saleLineColumns = `product_id, name, sku, qty, unit_price::text, discount_percent::text, line_total::text`

func (p *PGPersister) lines(ctx context.Context, saleID uuid.UUID) ([]SaleLine, error) {
	rows, err := p.Pool.Query(ctx,
		`SELECT `+saleLineColumns+` FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()
	return collectSaleLines(rows)
}

func (p *PGPersister) linesInTx(ctx context.Context, tx pgx.Tx, saleID uuid.UUID) ([]SaleLine, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+saleLineColumns+` FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()
	return collectSaleLines(rows)
}

func collectSaleLines(rows pgx.Rows) ([]SaleLine, error) {
	var out []SaleLine
	for rows.Next() {
		var (
			l                     SaleLine
			unit, discount, total string
		)
		if err := rows.Scan(&l.ProductID, &l.Name, &l.SKU, &l.Qty, &unit, &discount, &total); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		var err error
		if l.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if l.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("parse discount percent: %w", err)
		}
		if l.LineTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse line total: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
