package observability

import (
	"context"
	"time"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// InstrumentStore wraps every sub-store in s with timing/error
// recording against m, instead of threading a metrics handle through
// each store constructor.
func InstrumentStore(s *storage.Store, m *Metrics) *storage.Store {
	return &storage.Store{
		Catalog: catalogStore{s.Catalog, m},
		Pool:    poolStore{s.Pool, m},
		OHLCV:   ohlcvStore{s.OHLCV, m},
		Signal:  signalStore{s.Signal, m},
	}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	m.RecordStoreOp(op, time.Since(start).Seconds(), storage.IsTransient(err), err)
}

type catalogStore struct {
	storage.CatalogStore
	m *Metrics
}

func (c catalogStore) Bootstrap(ctx context.Context) error {
	start := time.Now()
	err := c.CatalogStore.Bootstrap(ctx)
	c.m.observe("catalog.bootstrap", start, err)
	return err
}

func (c catalogStore) UpsertBatch(ctx context.Context, entries []*domain.TokenCatalogEntry) error {
	start := time.Now()
	err := c.CatalogStore.UpsertBatch(ctx, entries)
	c.m.observe("catalog.upsert_batch", start, err)
	return err
}

func (c catalogStore) Prune(ctx context.Context, retainWindow int64, now int64) error {
	start := time.Now()
	err := c.CatalogStore.Prune(ctx, retainWindow, now)
	c.m.observe("catalog.prune", start, err)
	return err
}

type poolStore struct {
	storage.PoolStore
	m *Metrics
}

func (p poolStore) UpsertPool(ctx context.Context, mint domain.MintID, firstSeenTS int64, liqUSD, fdvUSD *float64) error {
	start := time.Now()
	err := p.PoolStore.UpsertPool(ctx, mint, firstSeenTS, liqUSD, fdvUSD)
	p.m.observe("pool.upsert", start, err)
	return err
}

type ohlcvStore struct {
	storage.OHLCVStore
	m *Metrics
}

func (o ohlcvStore) IngestSwap(ctx context.Context, mint domain.MintID, price, volUSD float64, ts int64) error {
	start := time.Now()
	err := o.OHLCVStore.IngestSwap(ctx, mint, price, volUSD, ts)
	o.m.observe("ohlcv.ingest_swap", start, err)
	return err
}

func (o ohlcvStore) Prune(ctx context.Context, olderThan int64) error {
	start := time.Now()
	err := o.OHLCVStore.Prune(ctx, olderThan)
	o.m.observe("ohlcv.prune", start, err)
	return err
}

type signalStore struct {
	storage.SignalStore
	m *Metrics
}

func (s signalStore) InsertSignal(ctx context.Context, sig *domain.EmittedSignal) (int64, error) {
	start := time.Now()
	id, err := s.SignalStore.InsertSignal(ctx, sig)
	s.m.observe("signal.insert", start, err)
	return id, err
}

func (s signalStore) Prune(ctx context.Context, olderThan int64) error {
	start := time.Now()
	err := s.SignalStore.Prune(ctx, olderThan)
	s.m.observe("signal.prune", start, err)
	return err
}
