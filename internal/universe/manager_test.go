package universe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage/memory"
	"solana-signal-pipeline/internal/universe/catalog"
)

const validMint1 = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
const validMint2 = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type fakeCatalog struct {
	list    []catalog.CoinListEntry
	markets map[string]catalog.MarketEntry
	listErr error
}

func (f *fakeCatalog) CoinList(ctx context.Context) ([]catalog.CoinListEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeCatalog) Markets(ctx context.Context, ids []string) (map[string]catalog.MarketEntry, error) {
	out := make(map[string]catalog.MarketEntry)
	for _, id := range ids {
		if m, ok := f.markets[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeEvictor struct {
	evicted []domain.MintID
}

func (f *fakeEvictor) Evict(mint domain.MintID) {
	f.evicted = append(f.evicted, mint)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinRequestInterval = 0
	cfg.InterBatchDelay = 0
	cfg.MinFreshCount = 1
	return cfg
}

func TestRefresh_MemoryCacheShortCircuits(t *testing.T) {
	store := memory.NewCatalogStore()
	fc := &fakeCatalog{}
	m := New(testConfig(), store, fc, nil, nil)

	m.mu.Lock()
	m.monitored[validMint1] = domain.TokenCatalogEntry{Mint: validMint1}
	m.memoryFetchAt = time.Now()
	m.mu.Unlock()

	require.NoError(t, m.Refresh(context.Background(), time.Now()))
	assert.Len(t, m.MonitoredSet(), 1)
}

func TestRefresh_RehydratesFromStoreWhenFresh(t *testing.T) {
	store := memory.NewCatalogStore()
	now := time.Now()
	require.NoError(t, store.UpsertBatch(context.Background(), []*domain.TokenCatalogEntry{
		{CatalogID: "tok1", Network: domain.Network, Mint: validMint1, Volume24h: 20000, FDV: 100000, PriceUSD: 1, UpdatedAt: now.Unix()},
	}))

	fc := &fakeCatalog{}
	m := New(testConfig(), store, fc, nil, nil)

	require.NoError(t, m.Refresh(context.Background(), now))
	assert.True(t, m.IsMonitored(validMint1))
}

func TestRefresh_ExternalFetchWriteThrough(t *testing.T) {
	store := memory.NewCatalogStore()
	fc := &fakeCatalog{
		list: []catalog.CoinListEntry{{ID: "tok1", Symbol: "t1", Platforms: map[string]string{domain.Network: validMint1}}},
		markets: map[string]catalog.MarketEntry{
			"tok1": {PriceUSD: 1, Volume24hUSD: 20000, MarketCapUSD: 100000},
		},
	}
	m := New(testConfig(), store, fc, nil, nil)

	require.NoError(t, m.Refresh(context.Background(), time.Now()))
	assert.True(t, m.IsMonitored(validMint1))
	count, err := store.FreshCount(context.Background(), int64((24 * time.Hour).Seconds()), time.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the external refresh must write through to the store before publishing the monitored set")
}

func TestPublishMonitoredSet_EmptyNeverReplacesNonEmpty(t *testing.T) {
	store := memory.NewCatalogStore()
	evictor := &fakeEvictor{}
	m := New(testConfig(), store, &fakeCatalog{}, evictor, nil)

	m.publishMonitoredSet([]domain.TokenCatalogEntry{
		{Mint: validMint1, Volume24h: 20000, FDV: 100000, PriceUSD: 1},
	})
	require.Len(t, m.MonitoredSet(), 1)

	m.publishMonitoredSet(nil)
	assert.Len(t, m.MonitoredSet(), 1)
	assert.Empty(t, evictor.evicted)
}

func TestPublishMonitoredSet_EvictsRemovedMints(t *testing.T) {
	store := memory.NewCatalogStore()
	evictor := &fakeEvictor{}
	m := New(testConfig(), store, &fakeCatalog{}, evictor, nil)

	m.publishMonitoredSet([]domain.TokenCatalogEntry{
		{Mint: validMint1, Volume24h: 20000, FDV: 100000, PriceUSD: 1},
		{Mint: validMint2, Volume24h: 20000, FDV: 100000, PriceUSD: 1},
	})
	require.Len(t, m.MonitoredSet(), 2)

	m.publishMonitoredSet([]domain.TokenCatalogEntry{
		{Mint: validMint1, Volume24h: 20000, FDV: 100000, PriceUSD: 1},
	})
	assert.Len(t, m.MonitoredSet(), 1)
	assert.Equal(t, []domain.MintID{validMint2}, evictor.evicted)
}

func TestBasicFilter_RejectsLowVolume(t *testing.T) {
	cfg := DefaultConfig()
	e := domain.TokenCatalogEntry{Mint: validMint1, Volume24h: 1, FDV: 1000, PriceUSD: 1}
	assert.False(t, passesBasicFilter(e, cfg))
}

func TestBasicFilter_RejectsHighFDV(t *testing.T) {
	cfg := DefaultConfig()
	e := domain.TokenCatalogEntry{Mint: validMint1, Volume24h: 20000, FDV: 9_000_000, PriceUSD: 1}
	assert.False(t, passesBasicFilter(e, cfg))
}

func TestBasicFilter_RejectsInvalidMint(t *testing.T) {
	cfg := DefaultConfig()
	e := domain.TokenCatalogEntry{Mint: "", Volume24h: 20000, FDV: 1000, PriceUSD: 1}
	assert.False(t, passesBasicFilter(e, cfg))
}

func TestBasicFilter_RejectsZeroPrice(t *testing.T) {
	cfg := DefaultConfig()
	e := domain.TokenCatalogEntry{Mint: validMint1, Volume24h: 20000, FDV: 1000, PriceUSD: 0}
	assert.False(t, passesBasicFilter(e, cfg))
}

func TestRefresh_BudgetExhaustedRehydratesFromFreshStore(t *testing.T) {
	store := memory.NewCatalogStore()
	require.NoError(t, store.UpsertBatch(context.Background(), []*domain.TokenCatalogEntry{
		{CatalogID: "tok1", Network: domain.Network, Mint: validMint1, Volume24h: 20000, FDV: 100000, PriceUSD: 1, UpdatedAt: time.Now().Unix()},
	}))

	cfg := testConfig()
	cfg.DailyBudget = 0
	fc := &fakeCatalog{}
	m := New(cfg, store, fc, nil, nil)

	require.NoError(t, m.Refresh(context.Background(), time.Now()))
	assert.True(t, m.IsMonitored(validMint1))
}
