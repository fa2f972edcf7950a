package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/reports"
)

type stubQueries struct {
	salesCalls int
	topCalls   int
}

func (s *stubQueries) SalesDaily(_ context.Context, from, _ time.Time) ([]reports.DailySales, error) {
	s.salesCalls++
	return []reports.DailySales{{
		Day:     from,
		Sales:   2,
		Revenue: decimal.RequireFromString("250000"),
		Tax:     decimal.RequireFromString("39915.97"),
		Savings: decimal.RequireFromString("12500"),
	}}, nil
}

func (s *stubQueries) TopProducts(_ context.Context, limit, _ int) ([]reports.TopProduct, error) {
	s.topCalls++
	out := []reports.TopProduct{{ProductID: uuid.New(), Name: "Gula Pasir 1kg", SKU: "GP-1", QtySold: 40, Revenue: decimal.RequireFromString("600000")}}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func newService(t *testing.T) (*reports.Service, *stubQueries) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	queries := &stubQueries{}
	return &reports.Service{Q: queries, R: rdb, TTL: time.Minute, DefaultRange: 30}, queries
}

func TestSalesRangeCached(t *testing.T) {
	svc, queries := newService(t)
	from := time.Now().Add(-24 * time.Hour).Truncate(24 * time.Hour)
	to := time.Now().Truncate(24 * time.Hour)

	first, err := svc.SalesRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.SalesRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if queries.salesCalls != 1 {
		t.Fatalf("expected 1 DB call, got %d", queries.salesCalls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one row from both calls")
	}
	if !first[0].Revenue.Equal(second[0].Revenue) {
		t.Fatalf("cached revenue mismatch: %s vs %s", first[0].Revenue, second[0].Revenue)
	}
}

func TestSalesRangeDistinctWindowsMiss(t *testing.T) {
	svc, queries := newService(t)
	to := time.Now().Truncate(24 * time.Hour)

	if _, err := svc.SalesRange(context.Background(), to.AddDate(0, 0, -7), to); err != nil {
		t.Fatalf("first window: %v", err)
	}
	if _, err := svc.SalesRange(context.Background(), to.AddDate(0, 0, -30), to); err != nil {
		t.Fatalf("second window: %v", err)
	}
	if queries.salesCalls != 2 {
		t.Fatalf("different windows must not share a cache entry, got %d calls", queries.salesCalls)
	}
}

func TestTopProductsCachedPerPage(t *testing.T) {
	svc, queries := newService(t)
	ctx := context.Background()

	if _, err := svc.TopProducts(ctx, 10, 0); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.TopProducts(ctx, 10, 0); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if _, err := svc.TopProducts(ctx, 10, 10); err != nil {
		t.Fatalf("next page: %v", err)
	}
	if queries.topCalls != 2 {
		t.Fatalf("expected 2 DB calls (one per page), got %d", queries.topCalls)
	}
}

func TestServiceWithoutRedisStillServes(t *testing.T) {
	queries := &stubQueries{}
	svc := &reports.Service{Q: queries, DefaultRange: 30}
	to := time.Now()

	if _, err := svc.SalesRange(context.Background(), to.AddDate(0, 0, -1), to); err != nil {
		t.Fatalf("uncached call: %v", err)
	}
	if _, err := svc.SalesRange(context.Background(), to.AddDate(0, 0, -1), to); err != nil {
		t.Fatalf("second uncached call: %v", err)
	}
	if queries.salesCalls != 2 {
		t.Fatalf("without redis every call hits the DB, got %d", queries.salesCalls)
	}
}
