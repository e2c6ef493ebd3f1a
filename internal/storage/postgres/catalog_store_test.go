package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/domain"
)

func TestCatalogStore_BootstrapIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCatalogStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Bootstrap(ctx))
	require.NoError(t, store.Bootstrap(ctx), "bootstrap must be safe to run twice")
}

func TestCatalogStore_UpsertBatchWriteThrough(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCatalogStore(pool)
	ctx := context.Background()

	entries := []*domain.TokenCatalogEntry{
		{CatalogID: "coin-1", Network: domain.Network, Mint: "mint1", Symbol: "ONE", PriceUSD: 1.5, UpdatedAt: 1000},
		{CatalogID: "coin-2", Network: domain.Network, Mint: "mint2", Symbol: "TWO", PriceUSD: 2.5, UpdatedAt: 1000},
	}
	require.NoError(t, store.UpsertBatch(ctx, entries))

	got, err := store.Rehydrate(ctx, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// A second, disjoint batch adds to the first batch's committed rows
	// rather than replacing them (write-through monotonicity).
	more := []*domain.TokenCatalogEntry{
		{CatalogID: "coin-3", Network: domain.Network, Mint: "mint3", Symbol: "THREE", PriceUSD: 3.5, UpdatedAt: 1000},
	}
	require.NoError(t, store.UpsertBatch(ctx, more))

	got, err = store.Rehydrate(ctx, 2000)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestCatalogStore_FreshCountAndPrune(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCatalogStore(pool)
	ctx := context.Background()

	entries := []*domain.TokenCatalogEntry{
		{CatalogID: "fresh", Network: domain.Network, Mint: "mint1", UpdatedAt: 9000},
		{CatalogID: "stale", Network: domain.Network, Mint: "mint2", UpdatedAt: 100},
	}
	require.NoError(t, store.UpsertBatch(ctx, entries))

	n, err := store.FreshCount(ctx, 3600, 10000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, store.Prune(ctx, 5000, 10000))

	got, err := store.Rehydrate(ctx, 10000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fresh", got[0].CatalogID)
}
