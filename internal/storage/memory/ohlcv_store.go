package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// OHLCVStore is a map-backed storage.OHLCVStore keyed by (mint, bucket_ts).
type OHLCVStore struct {
	mu      sync.Mutex
	buckets map[domain.MintID]map[int64]*domain.OHLCVBucket
}

// NewOHLCVStore creates an empty OHLCVStore.
func NewOHLCVStore() *OHLCVStore {
	return &OHLCVStore{buckets: make(map[domain.MintID]map[int64]*domain.OHLCVBucket)}
}

var _ storage.OHLCVStore = (*OHLCVStore)(nil)

func (s *OHLCVStore) IngestSwap(ctx context.Context, mint domain.MintID, price, volUSD float64, ts int64) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	bucketTS := domain.BucketTS(ts)

	s.mu.Lock()
	defer s.mu.Unlock()

	byTS, ok := s.buckets[mint]
	if !ok {
		byTS = make(map[int64]*domain.OHLCVBucket)
		s.buckets[mint] = byTS
	}

	b, ok := byTS[bucketTS]
	if !ok {
		byTS[bucketTS] = &domain.OHLCVBucket{
			Mint: mint, BucketTS: bucketTS,
			Open: price, High: price, Low: price, Close: price,
			Volume: volUSD,
		}
		return nil
	}

	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
	b.Close = price
	b.Volume += volUSD
	return nil
}

func (s *OHLCVStore) GetCandles(ctx context.Context, mint domain.MintID, n int) ([]*domain.OHLCVBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTS, ok := s.buckets[mint]
	if !ok {
		return nil, nil
	}

	all := make([]*domain.OHLCVBucket, 0, len(byTS))
	for _, b := range byTS {
		cp := *b
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].BucketTS < all[j].BucketTS })

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (s *OHLCVStore) Prune(ctx context.Context, olderThan int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for mint, byTS := range s.buckets {
		for ts := range byTS {
			if ts < olderThan {
				delete(byTS, ts)
			}
		}
		if len(byTS) == 0 {
			delete(s.buckets, mint)
		}
	}
	return nil
}
