package store

import (
	"context"
	"errors"
	"fmt"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectSlot = `SELECT value FROM slots WHERE key = $1`
	upsertSlot = `INSERT INTO slots (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteSlot = `DELETE FROM slots WHERE key = $1`
)

type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of SlotStore using a PostgreSQL connection pool.
// The slots table is created by the migrations in this package's migrations directory.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := p.db.QueryRow(ctx, selectSlot, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, carterrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("%w %s: %w", carterrors.ErrReadSlot, key, err)
	}
	return value, nil
}

// Put upserts the slot. The value column is jsonb, so non-JSON payloads are rejected by the database.
func (p *PgStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.Exec(ctx, upsertSlot, key, string(value)); err != nil {
		return fmt.Errorf("%w %s: %w", carterrors.ErrWriteSlot, key, err)
	}
	return nil
}

func (p *PgStore) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, deleteSlot, key); err != nil {
		return fmt.Errorf("%w %s: %w", carterrors.ErrDeleteSlot, key, err)
	}
	return nil
}
