// Package memory provides in-process map-backed stores for tests and
// for USE_MEMORY_STORE, guarded by a sync.Mutex or sync.RWMutex with defensive
// copy-in/copy-out so callers can't mutate stored state through a
// returned pointer.
package memory

import (
	"context"
	"sync"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// CatalogStore is a map-backed storage.CatalogStore keyed by
// (catalog_id, network).
type CatalogStore struct {
	mu     sync.RWMutex
	byKey  map[string]*domain.TokenCatalogEntry
	byMint map[domain.MintID]*domain.TokenCatalogEntry
}

// NewCatalogStore creates an empty CatalogStore.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		byKey:  make(map[string]*domain.TokenCatalogEntry),
		byMint: make(map[domain.MintID]*domain.TokenCatalogEntry),
	}
}

var _ storage.CatalogStore = (*CatalogStore)(nil)

func (s *CatalogStore) Bootstrap(ctx context.Context) error { return nil }

func (s *CatalogStore) UpsertBatch(ctx context.Context, entries []*domain.TokenCatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.CatalogID == "" {
			return storage.ErrInvalidInput
		}
		key := e.CatalogID + "|" + e.Network
		cp := *e
		if existing, ok := s.byKey[key]; ok {
			merged := mergeNonZero(existing, &cp)
			s.byKey[key] = merged
			s.byMint[merged.Mint] = merged
			continue
		}
		s.byKey[key] = &cp
		s.byMint[cp.Mint] = &cp
	}
	return nil
}

// mergeNonZero keeps the existing mint, symbol and name when the new
// entry leaves them empty; price, volume, market cap, FDV and
// updated_at always take the new entry's values, as the postgres
// upsert does.
func mergeNonZero(old, next *domain.TokenCatalogEntry) *domain.TokenCatalogEntry {
	merged := *old
	if next.Mint != "" {
		merged.Mint = next.Mint
	}
	if next.Symbol != "" {
		merged.Symbol = next.Symbol
	}
	if next.Name != "" {
		merged.Name = next.Name
	}
	merged.PriceUSD = next.PriceUSD
	merged.Volume24h = next.Volume24h
	merged.MarketCap = next.MarketCap
	merged.FDV = next.FDV
	merged.UpdatedAt = next.UpdatedAt
	return &merged
}

func (s *CatalogStore) FreshCount(ctx context.Context, freshnessWindow int64, now int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.byKey {
		if e.Mint == "" {
			continue
		}
		if domain.ValidateMint(e.Mint) != nil {
			continue
		}
		if e.UpdatedAt > now-freshnessWindow {
			count++
		}
	}
	return count, nil
}

func (s *CatalogStore) Rehydrate(ctx context.Context, now int64) ([]*domain.TokenCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TokenCatalogEntry, 0, len(s.byKey))
	for _, e := range s.byKey {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *CatalogStore) Prune(ctx context.Context, retainWindow int64, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.byKey {
		if e.UpdatedAt < now-retainWindow {
			delete(s.byKey, key)
			delete(s.byMint, e.Mint)
		}
	}
	return nil
}
