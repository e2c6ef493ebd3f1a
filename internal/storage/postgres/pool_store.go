package postgres

import (
	"fmt"

	"context"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

var _ storage.PoolStore = (*PoolStore)(nil)

// UpsertPool inserts a pool record; on conflict, updates only non-null
// fields (liq_usd, fdv_usd). first_seen_ts never regresses.
func (s *PoolStore) UpsertPool(ctx context.Context, mint domain.MintID, firstSeenTS int64, liqUSD, fdvUSD *float64) error {
	if mint == "" {
		return storage.NewPermanent("upsert_pool", storage.ErrInvalidInput)
	}

	const query = `
		INSERT INTO pools (mint, first_seen_ts, liq_usd, fdv_usd)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mint) DO UPDATE SET
			liq_usd = COALESCE(EXCLUDED.liq_usd, pools.liq_usd),
			fdv_usd = COALESCE(EXCLUDED.fdv_usd, pools.fdv_usd)
	`
	if _, err := s.pool.Exec(ctx, query, string(mint), firstSeenTS, liqUSD, fdvUSD); err != nil {
		return storage.NewTransient("upsert_pool", fmt.Errorf("upsert pool %s: %w", mint, err))
	}
	return nil
}

func (s *PoolStore) GetPool(ctx context.Context, mint domain.MintID) (*domain.PoolRecord, error) {
	const query = `SELECT mint, first_seen_ts, liq_usd, fdv_usd FROM pools WHERE mint = $1`

	var p domain.PoolRecord
	var m string
	err := s.pool.QueryRow(ctx, query, string(mint)).Scan(&m, &p.FirstSeenTS, &p.LiqUSD, &p.FDVUSD)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.NewTransient("get_pool", err)
	}
	p.Mint = domain.MintID(m)
	return &p, nil
}
