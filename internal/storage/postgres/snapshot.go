// Package postgres stores cart snapshots in PostgreSQL.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getSnapshotSQL = `SELECT value FROM snapshots WHERE key = $1`

	getTotalsSQL = `SELECT item_count, total FROM snapshots WHERE key = $1`

	upsertSnapshotSQL = `INSERT INTO snapshots (key, value, item_count, total, updated_at) VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, item_count = EXCLUDED.item_count,
		total = EXCLUDED.total, updated_at = EXCLUDED.updated_at`
)

var _ cart.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository implements cart.SnapshotRepository backed by PostgreSQL.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository returns a SnapshotRepository that uses the given pool.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Load returns the snapshot stored under key, or cart.ErrSnapshotNotFound.
func (r *SnapshotRepository) Load(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.pool.QueryRow(ctx, getSnapshotSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", cart.ErrSnapshotNotFound
		}
		return "", errors.Wrapf(err, "load snapshot %q", key)
	}
	return value, nil
}

// Save overwrites the snapshot stored under key. The item count and total
// are denormalized next to it for SQL reporting; a value that does not parse
// as a cart is stored with zero totals.
func (r *SnapshotRepository) Save(ctx context.Context, key, value string) error {
	var (
		items int
		total = decimal.Zero
	)
	if lines, err := cart.DecodeSnapshot(value); err == nil {
		items = cart.TotalItemCount(lines)
		total = cart.TotalPrice(lines)
	}
	if _, err := r.pool.Exec(ctx, upsertSnapshotSQL, key, value, items, total); err != nil {
		return errors.Wrapf(err, "save snapshot %q", key)
	}
	return nil
}

// Totals returns the denormalized item count and total stored under key.
func (r *SnapshotRepository) Totals(ctx context.Context, key string) (int, decimal.Decimal, error) {
	var (
		items int
		total decimal.Decimal
	)
	if err := r.pool.QueryRow(ctx, getTotalsSQL, key).Scan(&items, &total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, decimal.Zero, cart.ErrSnapshotNotFound
		}
		return 0, decimal.Zero, errors.Wrapf(err, "load totals %q", key)
	}
	return items, total, nil
}

// Ping checks database connectivity.
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
