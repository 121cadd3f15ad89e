// Package database provides an optional Postgres sink that mirrors the CSV
// record schema. Enabled when DATABASE_URL is set; the scraper only ever
// inserts, matching the append-only CSV semantics.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oleksdev/silpo-scraper/internal/models"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS product_records (
	id BIGSERIAL PRIMARY KEY,
	upload_ts TEXT NOT NULL,
	page_url TEXT NOT NULL,
	page_number INT NOT NULL,
	source TEXT NOT NULL,
	product_title TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	fat_pct TEXT NOT NULL DEFAULT '',
	pack_qty INT,
	pack_unit TEXT NOT NULL DEFAULT '',
	price_current NUMERIC(10,2) NOT NULL,
	price_old NUMERIC(10,2),
	discount_pct INT,
	price_per_unit NUMERIC(10,2),
	rating NUMERIC(3,1),
	price_type TEXT NOT NULL DEFAULT 'regular'
)`

const insertRecord = `
INSERT INTO product_records (
	upload_ts, page_url, page_number, source, product_title, brand,
	product_type, fat_pct, pack_qty, pack_unit, price_current, price_old,
	discount_pct, price_per_unit, rating, price_type
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

type RecordSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to Postgres and ensures the records table exists.
func New(ctx context.Context, dsn string) (*RecordSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createRecordsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &RecordSink{
		pool:   pool,
		logger: slog.Default().With("component", "database"),
	}, nil
}

// AppendProducts inserts a page batch in a single round trip.
func (s *RecordSink) AppendProducts(ctx context.Context, records []models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		r := &records[i]
		batch.Queue(insertRecord,
			r.UploadTS,
			r.PageURL,
			r.PageNumber,
			r.Source,
			r.Title,
			r.Brand,
			r.ProductType,
			r.FatPct,
			nullableInt(r.PackQty),
			r.PackUnit,
			r.PriceCurrent,
			nullableFloat(r.PriceOld),
			nullableInt(r.DiscountPct),
			nullableFloat(r.PricePerUnit),
			nullableFloat(r.Rating),
			r.PriceType,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	s.logger.Info("inserted records", "count", len(records))
	return nil
}

func (s *RecordSink) Close() {
	s.pool.Close()
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}
