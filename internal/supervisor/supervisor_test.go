package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/ingestor"
	"solana-signal-pipeline/internal/ingestor/enrichment"
	"solana-signal-pipeline/internal/ingestor/ws"
	"solana-signal-pipeline/internal/notifier"
	"solana-signal-pipeline/internal/rolling"
	"solana-signal-pipeline/internal/scheduler"
	"solana-signal-pipeline/internal/signalengine"
	"solana-signal-pipeline/internal/signalengine/aggregator"
	"solana-signal-pipeline/internal/storage"
	"solana-signal-pipeline/internal/storage/memory"
	"solana-signal-pipeline/internal/universe"
	"solana-signal-pipeline/internal/universe/catalog"
)

type noopEnrichment struct{}

func (noopEnrichment) GetTransactions(ctx context.Context, sigs []string) ([]enrichment.Transaction, error) {
	return nil, nil
}

type noopAggregator struct{}

func (noopAggregator) Quote(ctx context.Context, in, out string, amount int64) (aggregator.Quote, error) {
	return aggregator.Quote{}, nil
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeSink) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, text)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func buildComponents(t *testing.T, sink notifier.Sink) Components {
	t.Helper()

	store := &storage.Store{
		Catalog: memory.NewCatalogStore(),
		Pool:    memory.NewPoolStore(),
		OHLCV:   memory.NewOHLCVStore(),
		Signal:  memory.NewSignalStore(),
	}

	state := rolling.New()
	mgr := universe.New(universe.DefaultConfig(), store.Catalog, fakeEmptyCatalogClient{}, state, nil)

	// A real ws.Client whose Run is never invoked still exposes live,
	// never-firing Fatal/Notifications channels, so the Ingestor's
	// select loop blocks harmlessly until ctx is cancelled.
	wsClient := ws.New("wss://example.invalid", nil, ws.DefaultConfig(), nil)
	ing := ingestor.New(ingestor.DefaultConfig(), wsClient, noopEnrichment{}, store.Pool, store.OHLCV, mgr, nil)

	engine := signalengine.New(signalengine.DefaultConfig(), state, noopAggregator{}, store.Signal, nil, nil)

	sched := scheduler.New(scheduler.Config{
		RefreshPeriod: time.Hour, MaintenancePeriod: time.Hour, ActivitySnapshot: time.Hour,
		RefreshTimeout: time.Second, MaintenanceTimeout: time.Second,
	}, func(ctx context.Context) error { return nil }, func(ctx context.Context) error { return nil }, nil, nil)

	dispatch := notifier.NewDispatcher(sink, store.Signal, nil)

	return Components{
		Store: store, Universe: mgr, Ingestor: ing, Engine: engine,
		Scheduler: sched, Dispatch: dispatch, Sink: sink,
	}
}

// fakeEmptyCatalogClient satisfies catalog.Client with no network
// activity, since the Scheduler in this test drives a no-op refresh
// callback instead of calling Manager.Refresh directly.
type fakeEmptyCatalogClient struct{}

func (fakeEmptyCatalogClient) CoinList(ctx context.Context) ([]catalog.CoinListEntry, error) {
	return nil, nil
}
func (fakeEmptyCatalogClient) Markets(ctx context.Context, ids []string) (map[string]catalog.MarketEntry, error) {
	return nil, nil
}

func TestSupervisor_RunShutsDownCleanlyOnCancel(t *testing.T) {
	sink := &fakeSink{}
	comp := buildComponents(t, sink)
	sup := New(comp, nil)

	ctx, cancel := context.WithCancel(context.Background())
	doneErr := make(chan error, 1)
	go func() { doneErr <- sup.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-doneErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down after context cancellation")
	}
}

func TestSupervisor_ReportWarningRateLimited(t *testing.T) {
	sink := &fakeSink{}
	comp := buildComponents(t, sink)
	sup := New(comp, nil)

	sup.ReportWarning(context.Background(), "test", assert.AnError)
	sup.ReportWarning(context.Background(), "test", assert.AnError)

	assert.Equal(t, 1, sink.count(), "second warning within the interval must be suppressed")
}

func TestSupervisor_ActivityReporterSendsSnapshot(t *testing.T) {
	sink := &fakeSink{}
	comp := buildComponents(t, sink)
	sup := New(comp, nil)

	var calls atomic.Int64
	reporter := sup.ActivityReporter()
	require.NotNil(t, reporter)
	reporter()
	calls.Add(1)

	assert.Equal(t, 1, sink.count())
}
