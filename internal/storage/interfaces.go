// Package storage defines the durable backing for the catalog, pool
// records, OHLCV buckets and emitted signals, with postgres, clickhouse
// and memory implementations behind the interfaces below.
package storage

import (
	"context"

	"solana-signal-pipeline/internal/domain"
)

// RetentionPolicy controls how Prune deletes expired rows, per entity.
type RetentionPolicy struct {
	CatalogRetain int64 // seconds; default 72h
	OHLCVRetain   int64 // seconds; default 24h
	SignalsRetain int64 // seconds; default 24h
}

// CatalogStore persists the monitored-token catalog.
type CatalogStore interface {
	Bootstrap(ctx context.Context) error
	UpsertBatch(ctx context.Context, entries []*domain.TokenCatalogEntry) error
	FreshCount(ctx context.Context, freshnessWindow int64, now int64) (int, error)
	Rehydrate(ctx context.Context, now int64) ([]*domain.TokenCatalogEntry, error)
	Prune(ctx context.Context, retainWindow int64, now int64) error
}

// PoolStore persists one record per mint's first-observed pool.
type PoolStore interface {
	UpsertPool(ctx context.Context, mint domain.MintID, firstSeenTS int64, liqUSD, fdvUSD *float64) error
	GetPool(ctx context.Context, mint domain.MintID) (*domain.PoolRecord, error)
}

// OHLCVStore persists one-minute candle buckets.
type OHLCVStore interface {
	IngestSwap(ctx context.Context, mint domain.MintID, price, volUSD float64, ts int64) error
	GetCandles(ctx context.Context, mint domain.MintID, n int) ([]*domain.OHLCVBucket, error)
	Prune(ctx context.Context, olderThan int64) error
}

// SignalStore persists emitted signals.
type SignalStore interface {
	InsertSignal(ctx context.Context, s *domain.EmittedSignal) (int64, error)
	UnnotifiedSignals(ctx context.Context) ([]*domain.EmittedSignal, error)
	MarkNotified(ctx context.Context, id int64) error
	Prune(ctx context.Context, olderThan int64) error
}

// Store aggregates the four persistence concerns behind one handle for
// wiring into the rest of the pipeline.
type Store struct {
	Catalog CatalogStore
	Pool    PoolStore
	OHLCV   OHLCVStore
	Signal  SignalStore
}

// Prune runs every entity's retention rule in one call, for the
// Scheduler's daily maintenance tick.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy, now int64) error {
	if err := s.Catalog.Prune(ctx, policy.CatalogRetain, now); err != nil {
		return err
	}
	if err := s.OHLCV.Prune(ctx, now-policy.OHLCVRetain); err != nil {
		return err
	}
	if err := s.Signal.Prune(ctx, now-policy.SignalsRetain); err != nil {
		return err
	}
	return nil
}
