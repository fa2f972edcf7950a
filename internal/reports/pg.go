package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGQuerier aggregates reports straight from the sales tables.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

func (q *PGQuerier) SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day,
		        count(*) FILTER (WHERE status = 'completed') AS sales,
		        count(*) FILTER (WHERE status = 'voided') AS voided,
		        COALESCE(sum(total) FILTER (WHERE status = 'completed'), 0)::text AS revenue,
		        COALESCE(sum(tax) FILTER (WHERE status = 'completed'), 0)::text AS tax,
		        COALESCE(sum(total_savings) FILTER (WHERE status = 'completed'), 0)::text AS savings
		 FROM sales
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY 1 ORDER BY 1`, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales daily: %w", err)
	}
	defer rows.Close()

	var out []DailySales
	for rows.Next() {
		var (
			d                     DailySales
			revenue, tax, savings string
		)
		if err := rows.Scan(&d.Day, &d.Sales, &d.Voided, &revenue, &tax, &savings); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		if d.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		if d.Tax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("parse tax: %w", err)
		}
		if d.Savings, err = decimal.NewFromString(savings); err != nil {
			return nil, fmt.Errorf("parse savings: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *PGQuerier) TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT sl.product_id, sl.name, sl.sku,
		        sum(sl.qty) AS qty_sold,
		        COALESCE(sum(sl.line_total), 0)::text AS revenue
		 FROM sale_lines sl
		 JOIN sales s ON s.id = sl.sale_id AND s.status = 'completed'
		 GROUP BY sl.product_id, sl.name, sl.sku
		 ORDER BY qty_sold DESC, sl.name
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	return collectTopProducts(rows)
}

func collectTopProducts(rows pgx.Rows) ([]TopProduct, error) {
	var out []TopProduct
	for rows.Next() {
		var (
			t       TopProduct
			revenue string
		)
		if err := rows.Scan(&t.ProductID, &t.Name, &t.SKU, &t.QtySold, &revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		var err error
		if t.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
