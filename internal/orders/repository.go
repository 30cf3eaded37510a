package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// Repository keeps the local history of confirmed orders and the deliveries
// confirmed against them.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer; ":memory:" is also per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// SaveOrder records a confirmed order. Saving the same reference twice is a
// no-op.
func (r *Repository) SaveOrder(ctx context.Context, o domain.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}

	query := `
		INSERT INTO orders (reference, attempt_id, account, method, amount, item_count, tx_hash, lines, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(reference) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		o.Reference,
		o.AttemptID,
		strings.ToLower(o.Account),
		o.Method.String(),
		o.Amount.String(),
		o.ItemCount,
		o.TxHash,
		string(lines),
		o.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// ListByAccount returns the orders of account, newest first.
func (r *Repository) ListByAccount(ctx context.Context, account string) ([]domain.Order, error) {
	query := `
		SELECT reference, attempt_id, account, method, amount, item_count, tx_hash, lines, created_at
		FROM orders
		WHERE account = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, strings.ToLower(account))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) GetOrder(ctx context.Context, reference string) (domain.Order, error) {
	query := `
		SELECT reference, attempt_id, account, method, amount, item_count, tx_hash, lines, created_at
		FROM orders
		WHERE reference = $1
	`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", reference, domain.ErrNotFound)
	}
	return o, err
}

func (r *Repository) SaveDelivery(ctx context.Context, d domain.Delivery) error {
	query := `
		INSERT INTO deliveries (reference, product_id, tx_hash, confirmed_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, d.Reference, d.ProductID, d.TxHash, d.ConfirmedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

func (r *Repository) ListDeliveries(ctx context.Context, reference string) ([]domain.Delivery, error) {
	query := `
		SELECT reference, product_id, tx_hash, confirmed_at
		FROM deliveries
		WHERE reference = $1
		ORDER BY confirmed_at
	`
	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.Reference, &d.ProductID, &d.TxHash, &d.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (domain.Order, error) {
	var (
		o      domain.Order
		method string
		lines  string
	)
	err := s.Scan(
		&o.Reference,
		&o.AttemptID,
		&o.Account,
		&method,
		&o.Amount,
		&o.ItemCount,
		&o.TxHash,
		&lines,
		&o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, err
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to scan order: %w", err)
	}
	o.Method = domain.PaymentMethod(method)
	if err := json.Unmarshal([]byte(lines), &o.Lines); err != nil {
		return domain.Order{}, fmt.Errorf("failed to decode lines of order %s: %w", o.Reference, err)
	}
	return o, nil
}
