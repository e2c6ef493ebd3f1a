package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// OHLCVStore implements storage.OHLCVStore against a ReplacingMergeTree
// table. ClickHouse only replaces rows asynchronously during background
// merges, so every write reads the current bucket, applies the merge
// rule in Go, and inserts a new, higher-versioned row; reads dedupe
// explicitly with LIMIT 1 BY rather than relying on merge timing.
type OHLCVStore struct {
	conn *Conn
}

// NewOHLCVStore creates a new OHLCVStore.
func NewOHLCVStore(conn *Conn) *OHLCVStore {
	return &OHLCVStore{conn: conn}
}

var _ storage.OHLCVStore = (*OHLCVStore)(nil)

func (s *OHLCVStore) IngestSwap(ctx context.Context, mint domain.MintID, price, volUSD float64, ts int64) error {
	if mint == "" {
		return storage.NewPermanent("ingest_swap", storage.ErrInvalidInput)
	}

	bucketTS := domain.BucketTS(ts)
	current, version, err := s.currentBucket(ctx, mint, bucketTS)
	if err != nil {
		return storage.NewTransient("ingest_swap", err)
	}

	next := domain.OHLCVBucket{Mint: mint, BucketTS: bucketTS}
	if current == nil {
		next.Open, next.High, next.Low, next.Close, next.Volume = price, price, price, price, volUSD
	} else {
		next.Open = current.Open
		next.High = current.High
		if price > next.High {
			next.High = price
		}
		next.Low = current.Low
		if price < next.Low {
			next.Low = price
		}
		next.Close = price
		next.Volume = current.Volume + volUSD
	}

	const insert = `
		INSERT INTO ohlcv_buckets (mint, bucket_ts, open, high, low, close, volume, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, insert, string(mint), bucketTS,
		next.Open, next.High, next.Low, next.Close, next.Volume, version+1); err != nil {
		return storage.NewTransient("ingest_swap", fmt.Errorf("insert bucket version: %w", err))
	}
	return nil
}

// currentBucket returns the latest-version row for (mint, bucket_ts) and
// its version, or (nil, 0, nil) if no row exists yet.
func (s *OHLCVStore) currentBucket(ctx context.Context, mint domain.MintID, bucketTS int64) (*domain.OHLCVBucket, uint64, error) {
	const query = `
		SELECT open, high, low, close, volume, version
		FROM ohlcv_buckets
		WHERE mint = ? AND bucket_ts = ?
		ORDER BY version DESC
		LIMIT 1
	`
	row := s.conn.QueryRow(ctx, query, string(mint), bucketTS)

	var b domain.OHLCVBucket
	var version uint64
	if err := row.Scan(&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	b.Mint = mint
	b.BucketTS = bucketTS
	return &b, version, nil
}

func (s *OHLCVStore) GetCandles(ctx context.Context, mint domain.MintID, n int) ([]*domain.OHLCVBucket, error) {
	limit := n
	if limit <= 0 {
		limit = 120
	}

	const query = `
		SELECT bucket_ts, open, high, low, close, volume
		FROM (
			SELECT bucket_ts, open, high, low, close, volume
			FROM ohlcv_buckets
			WHERE mint = ?
			ORDER BY bucket_ts DESC, version DESC
			LIMIT 1 BY bucket_ts
			LIMIT ?
		)
		ORDER BY bucket_ts ASC
	`
	rows, err := s.conn.Query(ctx, query, string(mint), limit)
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
	const query = `ALTER TABLE ohlcv_buckets DELETE WHERE bucket_ts < ?`
	if err := s.conn.Exec(ctx, query, olderThan); err != nil {
		return storage.NewTransient("prune_ohlcv", err)
	}
	return nil
}
