// Package postgres implements the catalog, order and user stores on
// PostgreSQL through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agromart/marketplace-service/config"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) UNIQUE NOT NULL,
	phone VARCHAR(32) NOT NULL DEFAULT '',
	role VARCHAR(32) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category VARCHAR(32) NOT NULL,
	price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	unit VARCHAR(32) NOT NULL,
	seller_id UUID NOT NULL REFERENCES users(id),
	sales_count INTEGER NOT NULL DEFAULT 0 CHECK (sales_count >= 0),
	image TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS waste_products (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	type VARCHAR(32) NOT NULL,
	quantity NUMERIC(14, 3) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	unit VARCHAR(32) NOT NULL,
	price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	location VARCHAR(255) NOT NULL,
	seller_id UUID NOT NULL REFERENCES users(id),
	possible_uses TEXT[] NOT NULL DEFAULT '{}',
	nutrient_content JSONB NOT NULL DEFAULT '{}',
	sales_count INTEGER NOT NULL DEFAULT 0 CHECK (sales_count >= 0),
	image TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	order_number VARCHAR(64) UNIQUE NOT NULL,
	invoice_number VARCHAR(64) UNIQUE NOT NULL,
	buyer_id UUID NOT NULL REFERENCES users(id),
	buyer_email VARCHAR(255) NOT NULL DEFAULT '',
	items JSONB NOT NULL,
	shipping_address JSONB NOT NULL,
	payment_method VARCHAR(32) NOT NULL,
	payment_details JSONB NOT NULL,
	subtotal NUMERIC(12, 2) NOT NULL,
	tax_amount NUMERIC(12, 2) NOT NULL,
	shipping_amount NUMERIC(12, 2) NOT NULL,
	discount_amount NUMERIC(12, 2) NOT NULL,
	total_amount NUMERIC(12, 2) NOT NULL,
	status VARCHAR(32) NOT NULL,
	status_history JSONB NOT NULL,
	estimated_delivery TIMESTAMPTZ NOT NULL,
	delivered_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	cancellation_reason TEXT NOT NULL DEFAULT '',
	tracking_number VARCHAR(128) NOT NULL DEFAULT '',
	carrier VARCHAR(128) NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_buyer_created ON orders (buyer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_created ON orders (created_at);
`

func InitDB(cfg config.DB, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// q returns the transaction carried by ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in a transaction. Calls already inside one join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
