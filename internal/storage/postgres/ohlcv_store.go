package postgres

import (
	"context"
	"fmt"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// OHLCVStore implements storage.OHLCVStore using PostgreSQL.
type OHLCVStore struct {
	pool *Pool
}

// NewOHLCVStore creates a new OHLCVStore.
func NewOHLCVStore(pool *Pool) *OHLCVStore {
	return &OHLCVStore{pool: pool}
}

var _ storage.OHLCVStore = (*OHLCVStore)(nil)

// IngestSwap upserts the bucket ts - (ts mod 60) per the merge rule:
// h <- max(h, p), l <- min(l, p), c <- p, v <- v + vol_usd; o is set
// once on bucket creation.
func (s *OHLCVStore) IngestSwap(ctx context.Context, mint domain.MintID, price, volUSD float64, ts int64) error {
	if mint == "" {
		return storage.NewPermanent("ingest_swap", storage.ErrInvalidInput)
	}

	bucketTS := domain.BucketTS(ts)
	const query = `
		INSERT INTO ohlcv_buckets (mint, bucket_ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $3, $3, $3, $4)
		ON CONFLICT (mint, bucket_ts) DO UPDATE SET
			high   = GREATEST(ohlcv_buckets.high, EXCLUDED.high),
			low    = LEAST(ohlcv_buckets.low, EXCLUDED.low),
			close  = EXCLUDED.close,
			volume = ohlcv_buckets.volume + EXCLUDED.volume
	`
	if _, err := s.pool.Exec(ctx, query, string(mint), bucketTS, price, volUSD); err != nil {
		return storage.NewTransient("ingest_swap", fmt.Errorf("upsert bucket %s/%d: %w", mint, bucketTS, err))
	}
	return nil
}

func (s *OHLCVStore) GetCandles(ctx context.Context, mint domain.MintID, n int) ([]*domain.OHLCVBucket, error) {
	const query = `
		SELECT bucket_ts, open, high, low, close, volume
		FROM (
			SELECT bucket_ts, open, high, low, close, volume
			FROM ohlcv_buckets
			WHERE mint = $1
			ORDER BY bucket_ts DESC
			LIMIT $2
		) recent
		ORDER BY bucket_ts ASC
	`
	limit := n
	if limit <= 0 {
		limit = 120
	}
	rows, err := s.pool.Query(ctx, query, string(mint), limit)
	if err != nil {
		return nil, storage.NewTransient("get_candles", err)
	}
	defer rows.Close()

	var out []*domain.OHLCVBucket
	for rows.Next() {
		b := &domain.OHLCVBucket{Mint: mint}
		if err := rows.Scan(&b.BucketTS, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, storage.NewTransient("get_candles", fmt.Errorf("scan row: %w", err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewTransient("get_candles", err)
	}
	return out, nil
}

func (s *OHLCVStore) Prune(ctx context.Context, olderThan int64) error {
	const query = `DELETE FROM ohlcv_buckets WHERE bucket_ts < $1`
	if _, err := s.pool.Exec(ctx, query, olderThan); err != nil {
		return storage.NewTransient("prune_ohlcv", err)
	}
	return nil
}
