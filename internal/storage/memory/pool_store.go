package memory

import (
	"context"
	"sync"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// PoolStore is a map-backed storage.PoolStore keyed by mint.
type PoolStore struct {
	mu    sync.RWMutex
	pools map[domain.MintID]*domain.PoolRecord
}

// NewPoolStore creates an empty PoolStore.
func NewPoolStore() *PoolStore {
	return &PoolStore{pools: make(map[domain.MintID]*domain.PoolRecord)}
}

var _ storage.PoolStore = (*PoolStore)(nil)

func (s *PoolStore) UpsertPool(ctx context.Context, mint domain.MintID, firstSeenTS int64, liqUSD, fdvUSD *float64) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pools[mint]
	if !ok {
		s.pools[mint] = &domain.PoolRecord{
			Mint:        mint,
			FirstSeenTS: firstSeenTS,
			LiqUSD:      copyFloat(liqUSD),
			FDVUSD:      copyFloat(fdvUSD),
		}
		return nil
	}

	// "on conflict, update only non-null fields" — FirstSeenTS is the
	// first-observed timestamp and never regresses.
	if liqUSD != nil {
		existing.LiqUSD = copyFloat(liqUSD)
	}
	if fdvUSD != nil {
		existing.FDVUSD = copyFloat(fdvUSD)
	}
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *PoolStore) GetPool(ctx context.Context, mint domain.MintID) (*domain.PoolRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	cp.LiqUSD = copyFloat(p.LiqUSD)
	cp.FDVUSD = copyFloat(p.FDVUSD)
	return &cp, nil
}
