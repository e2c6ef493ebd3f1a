package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// SignalStore is a map-backed, append-only storage.SignalStore.
type SignalStore struct {
	mu      sync.Mutex
	nextID  int64
	signals map[int64]*domain.EmittedSignal
}

// NewSignalStore creates an empty SignalStore.
func NewSignalStore() *SignalStore {
	return &SignalStore{signals: make(map[int64]*domain.EmittedSignal)}
}

var _ storage.SignalStore = (*SignalStore)(nil)

func (s *SignalStore) InsertSignal(ctx context.Context, sig *domain.EmittedSignal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cp := *sig
	cp.ID = s.nextID
	cp.Notified = false
	s.signals[cp.ID] = &cp
	return cp.ID, nil
}

func (s *SignalStore) UnnotifiedSignals(ctx context.Context) ([]*domain.EmittedSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.EmittedSignal, 0)
	for _, sig := range s.signals {
		if !sig.Notified {
			cp := *sig
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalTS < out[j].SignalTS })
	return out, nil
}

func (s *SignalStore) MarkNotified(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return storage.ErrNotFound
	}
	sig.Notified = true
	return nil
}

func (s *SignalStore) Prune(ctx context.Context, olderThan int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sig := range s.signals {
		if sig.SignalTS < olderThan {
			delete(s.signals, id)
		}
	}
	return nil
}
