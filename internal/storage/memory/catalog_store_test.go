package memory

import (
	"context"
	"testing"

	"solana-signal-pipeline/internal/domain"
)

func TestCatalogStore_UpsertAndRehydrate(t *testing.T) {
	store := NewCatalogStore()
	ctx := context.Background()

	entries := []*domain.TokenCatalogEntry{
		{CatalogID: "c1", Network: domain.Network, Mint: "mint1", Symbol: "ONE", UpdatedAt: 1000},
		{CatalogID: "c2", Network: domain.Network, Mint: "mint2", Symbol: "TWO", UpdatedAt: 2000},
	}

	if err := store.UpsertBatch(ctx, entries); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	got, err := store.Rehydrate(ctx, 3000)
	if err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestCatalogStore_UpsertBatchMerge(t *testing.T) {
	store := NewCatalogStore()
	ctx := context.Background()

	first := &domain.TokenCatalogEntry{CatalogID: "c1", Network: domain.Network, Mint: "mint1", Symbol: "ONE", PriceUSD: 1, UpdatedAt: 1000}
	if err := store.UpsertBatch(ctx, []*domain.TokenCatalogEntry{first}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := &domain.TokenCatalogEntry{CatalogID: "c1", Network: domain.Network, Mint: "mint1", PriceUSD: 2, UpdatedAt: 2000}
	if err := store.UpsertBatch(ctx, []*domain.TokenCatalogEntry{second}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.Rehydrate(ctx, 3000)
	if err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 merged entry, got %d", len(got))
	}
	if got[0].PriceUSD != 2 {
		t.Errorf("expected merged PriceUSD 2, got %v", got[0].PriceUSD)
	}
	if got[0].Symbol != "ONE" {
		t.Errorf("expected Symbol to persist from first write, got %q", got[0].Symbol)
	}
}

func TestCatalogStore_FreshCount(t *testing.T) {
	store := NewCatalogStore()
	ctx := context.Background()

	entries := []*domain.TokenCatalogEntry{
		{CatalogID: "c1", Network: domain.Network, Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", UpdatedAt: 9000},
		{CatalogID: "c2", Network: domain.Network, Mint: "", UpdatedAt: 9000},
	}
	if err := store.UpsertBatch(ctx, entries); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	n, err := store.FreshCount(ctx, 3600, 10000)
	if err != nil {
		t.Fatalf("FreshCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 fresh valid-mint entry, got %d", n)
	}
}

func TestCatalogStore_Prune(t *testing.T) {
	store := NewCatalogStore()
	ctx := context.Background()

	entries := []*domain.TokenCatalogEntry{
		{CatalogID: "old", Network: domain.Network, Mint: "mint-old", UpdatedAt: 1000},
		{CatalogID: "new", Network: domain.Network, Mint: "mint-new", UpdatedAt: 9000},
	}
	if err := store.UpsertBatch(ctx, entries); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	if err := store.Prune(ctx, 5000, 9500); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	got, err := store.Rehydrate(ctx, 9500)
	if err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if len(got) != 1 || got[0].CatalogID != "new" {
		t.Errorf("expected only 'new' entry to survive prune, got %+v", got)
	}
}
