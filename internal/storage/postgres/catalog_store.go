package postgres

import (
	"context"
	"fmt"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
	"solana-signal-pipeline/internal/storage/migrations"
)

// CatalogStore implements storage.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool *Pool
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

var _ storage.CatalogStore = (*CatalogStore)(nil)

func (s *CatalogStore) Bootstrap(ctx context.Context) error {
	if err := migrations.RunPostgresMigrations(ctx, s.pool.Pool); err != nil {
		return storage.NewPermanent("bootstrap", err)
	}
	return nil
}

// UpsertBatch upserts every entry in a single transaction, by
// (catalog_id, network): failure of any row aborts the whole batch so
// the caller can retry at batch granularity.
func (s *CatalogStore) UpsertBatch(ctx context.Context, entries []*domain.TokenCatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.NewTransient("upsert_catalog_batch", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO token_catalog (
			catalog_id, network, mint, symbol, name, price_usd, volume_24h, market_cap, fdv, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (catalog_id, network) DO UPDATE SET
			mint       = COALESCE(NULLIF(EXCLUDED.mint, ''), token_catalog.mint),
			symbol     = COALESCE(NULLIF(EXCLUDED.symbol, ''), token_catalog.symbol),
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), token_catalog.name),
			price_usd  = EXCLUDED.price_usd,
			volume_24h = EXCLUDED.volume_24h,
			market_cap = EXCLUDED.market_cap,
			fdv        = EXCLUDED.fdv,
			updated_at = EXCLUDED.updated_at
	`

	for _, e := range entries {
		if e.CatalogID == "" {
			return storage.NewPermanent("upsert_catalog_batch", storage.ErrInvalidInput)
		}
		network := e.Network
		if network == "" {
			network = domain.Network
		}
		if _, err := tx.Exec(ctx, query,
			e.CatalogID, network, string(e.Mint), e.Symbol, e.Name,
			e.PriceUSD, e.Volume24h, e.MarketCap, e.FDV, e.UpdatedAt,
		); err != nil {
			if isDuplicateKeyError(err) {
				return storage.NewPermanent("upsert_catalog_batch", fmt.Errorf("upsert entry %s: %w: %w", e.CatalogID, storage.ErrDuplicateKey, err))
			}
			return storage.NewTransient("upsert_catalog_batch", fmt.Errorf("upsert entry %s: %w", e.CatalogID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.NewTransient("upsert_catalog_batch", fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *CatalogStore) FreshCount(ctx context.Context, freshnessWindow int64, now int64) (int, error) {
	const query = `
		SELECT COUNT(*) FROM token_catalog
		WHERE mint <> '' AND updated_at > $1
	`
	var count int
	if err := s.pool.QueryRow(ctx, query, now-freshnessWindow).Scan(&count); err != nil {
		return 0, storage.NewTransient("fresh_count", err)
	}
	return count, nil
}

func (s *CatalogStore) Rehydrate(ctx context.Context, now int64) ([]*domain.TokenCatalogEntry, error) {
	const query = `
		SELECT catalog_id, network, mint, symbol, name, price_usd, volume_24h, market_cap, fdv, updated_at
		FROM token_catalog
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, storage.NewTransient("rehydrate", err)
	}
	defer rows.Close()

	var out []*domain.TokenCatalogEntry
	for rows.Next() {
		var e domain.TokenCatalogEntry
		var mint string
		if err := rows.Scan(&e.CatalogID, &e.Network, &mint, &e.Symbol, &e.Name,
			&e.PriceUSD, &e.Volume24h, &e.MarketCap, &e.FDV, &e.UpdatedAt); err != nil {
			return nil, storage.NewTransient("rehydrate", fmt.Errorf("scan row: %w", err))
		}
		e.Mint = domain.MintID(mint)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewTransient("rehydrate", err)
	}
	return out, nil
}

func (s *CatalogStore) Prune(ctx context.Context, retainWindow int64, now int64) error {
	const query = `DELETE FROM token_catalog WHERE updated_at < $1`
	if _, err := s.pool.Exec(ctx, query, now-retainWindow); err != nil {
		return storage.NewTransient("prune_catalog", err)
	}
	return nil
}
