// Package universe owns the monitored-token set: a memory cache backed
// by the store, refreshed from the external catalog within a strict
// per-day request budget.
package universe

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
	"solana-signal-pipeline/internal/universe/catalog"
)

// Config holds every tunable of the refresh protocol, all with the
// defaults named in the external interfaces.
type Config struct {
	MemoryTTL          time.Duration
	FreshnessWindow    time.Duration
	MinFreshCount      int
	ListTTL            time.Duration
	BatchSize          int
	InterBatchDelay    time.Duration
	MinRequestInterval time.Duration
	MaxRetries         int
	DailyBudget        int
	MinLiquidityUSD    float64
	MaxFDVUSD          float64
	TargetNetwork      string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MemoryTTL:          48 * time.Hour,
		FreshnessWindow:    24 * time.Hour,
		MinFreshCount:      20,
		ListTTL:            48 * time.Hour,
		BatchSize:          50,
		InterBatchDelay:    5 * time.Second,
		MinRequestInterval: 3 * time.Second,
		MaxRetries:         2,
		DailyBudget:        280,
		MinLiquidityUSD:    10000,
		MaxFDVUSD:          5000000,
		TargetNetwork:      domain.Network,
	}
}

// Evictor is notified when a mint leaves the monitored set, so it can
// drop Rolling State. internal/rolling.State satisfies this.
type Evictor interface {
	Evict(mint domain.MintID)
}

// Manager owns the monitored set and the refresh protocol.
type Manager struct {
	cfg     Config
	store   storage.CatalogStore
	catalog catalog.Client
	evict   Evictor
	logger  *log.Logger

	mu            sync.RWMutex
	monitored     map[domain.MintID]domain.TokenCatalogEntry
	memoryFetchAt time.Time
	coinList      []catalog.CoinListEntry
	coinListAt    time.Time
	budgetDay     string
	budgetUsed    int
	lastRequestAt time.Time
}

// New builds a Manager. logger defaults to log.Default() if nil.
func New(cfg Config, store storage.CatalogStore, client catalog.Client, evict Evictor, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:       cfg,
		store:     store,
		catalog:   client,
		evict:     evict,
		logger:    logger,
		monitored: make(map[domain.MintID]domain.TokenCatalogEntry),
	}
}

// MonitoredSet returns a snapshot of the current monitored mints.
func (m *Manager) MonitoredSet() map[domain.MintID]domain.TokenCatalogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.MintID]domain.TokenCatalogEntry, len(m.monitored))
	for k, v := range m.monitored {
		out[k] = v
	}
	return out
}

// IsMonitored reports whether mint is currently in the monitored set,
// the check the Ingestor makes before dispatching a SwapEvent.
func (m *Manager) IsMonitored(mint domain.MintID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.monitored[mint]
	return ok
}

// Symbol returns the catalog symbol for a monitored mint, or "" if the
// mint is not (or no longer) monitored. The Ingestor uses this to stamp
// SwapEvent.Symbol at dispatch time.
func (m *Manager) Symbol(mint domain.MintID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitored[mint].Symbol
}

// passesBasicFilter applies the minimum-liquidity/maximum-FDV
// admission filter.
func passesBasicFilter(e domain.TokenCatalogEntry, cfg Config) bool {
	if e.Volume24h < cfg.MinLiquidityUSD {
		return false
	}
	if e.FDV > cfg.MaxFDVUSD {
		return false
	}
	if domain.ValidateMint(e.Mint) != nil {
		return false
	}
	if e.PriceUSD <= 0 {
		return false
	}
	return true
}

// Refresh runs one refresh tick: memory cache, then store, then the
// external catalog, in that precedence order.
func (m *Manager) Refresh(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	fresh := !m.memoryFetchAt.IsZero() && now.Sub(m.memoryFetchAt) < m.cfg.MemoryTTL && len(m.monitored) > 0
	m.mu.Unlock()
	if fresh {
		return nil
	}

	freshCount, err := m.store.FreshCount(ctx, int64(m.cfg.FreshnessWindow.Seconds()), now.Unix())
	if err != nil {
		m.logger.Printf("store fresh count check failed, falling back to external catalog: %v", err)
	} else if freshCount >= m.cfg.MinFreshCount {
		return m.rehydrateFromStore(ctx, now)
	}

	return m.refreshFromExternal(ctx, now)
}

func (m *Manager) rehydrateFromStore(ctx context.Context, now time.Time) error {
	entries, err := m.store.Rehydrate(ctx, now.Unix())
	if err != nil {
		return fmt.Errorf("rehydrate from store: %w", err)
	}
	tokens := make([]domain.TokenCatalogEntry, 0, len(entries))
	for _, e := range entries {
		tokens = append(tokens, *e)
	}
	m.publishMonitoredSet(tokens)
	m.mu.Lock()
	m.memoryFetchAt = now
	m.mu.Unlock()
	return nil
}

// refreshFromExternal runs the budgeted external-catalog protocol:
// fetch the coin list (cached per ListTTL), then price/market batches,
// writing through to the store after every batch.
func (m *Manager) refreshFromExternal(ctx context.Context, now time.Time) error {
	m.resetBudgetIfNewDay(now)

	list, err := m.filteredCoinList(ctx, now)
	if err != nil {
		m.logger.Printf("coin list fetch failed, keeping prior monitored set: %v", err)
		return nil
	}
	if len(list) == 0 {
		return nil
	}

	var accumulated []domain.TokenCatalogEntry
	for start := 0; start < len(list); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(list) {
			end = len(list)
		}
		batch := list[start:end]

		if !m.consumeBudget() {
			m.logger.Printf("daily catalog budget exhausted, returning partial refresh (%d entries)", len(accumulated))
			break
		}

		m.throttle(ctx)

		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}

		markets, err := m.fetchMarketsWithRetry(ctx, ids)
		if err != nil {
			m.logger.Printf("market batch fetch failed after retries, stopping refresh: %v", err)
			break
		}

		entries := make([]domain.TokenCatalogEntry, 0, len(batch))
		for _, c := range batch {
			mkt, ok := markets[c.ID]
			if !ok {
				continue
			}
			entries = append(entries, domain.TokenCatalogEntry{
				CatalogID: c.ID,
				Network:   m.cfg.TargetNetwork,
				Mint:      domain.MintID(c.Platforms[m.cfg.TargetNetwork]),
				Symbol:    c.Symbol,
				Name:      c.Name,
				PriceUSD:  mkt.PriceUSD,
				Volume24h: mkt.Volume24hUSD,
				MarketCap: mkt.MarketCapUSD,
				FDV:       mkt.MarketCapUSD,
				UpdatedAt: now.Unix(),
			})
		}

		ptrs := make([]*domain.TokenCatalogEntry, len(entries))
		for i := range entries {
			ptrs[i] = &entries[i]
		}
		if err := m.store.UpsertBatch(ctx, ptrs); err != nil {
			m.logger.Printf("write-through upsert failed for batch [%d,%d): %v", start, end, err)
			break
		}

		accumulated = append(accumulated, entries...)

		if end < len(list) {
			select {
			case <-ctx.Done():
				break
			case <-time.After(m.cfg.InterBatchDelay):
			}
		}
	}

	if len(accumulated) == 0 {
		return nil
	}

	m.publishMonitoredSet(accumulated)
	m.mu.Lock()
	m.memoryFetchAt = now
	m.mu.Unlock()
	return nil
}

func (m *Manager) filteredCoinList(ctx context.Context, now time.Time) ([]catalog.CoinListEntry, error) {
	m.mu.RLock()
	cached := !m.coinListAt.IsZero() && now.Sub(m.coinListAt) < m.cfg.ListTTL && len(m.coinList) > 0
	list := m.coinList
	m.mu.RUnlock()
	if cached {
		return list, nil
	}

	if !m.consumeBudget() {
		return nil, fmt.Errorf("budget exhausted before coin list fetch")
	}
	m.throttle(ctx)

	all, err := m.catalog.CoinList(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]catalog.CoinListEntry, 0, len(all))
	for _, e := range all {
		if addr, ok := e.Platforms[m.cfg.TargetNetwork]; ok && addr != "" {
			filtered = append(filtered, e)
		}
	}

	m.mu.Lock()
	m.coinList = filtered
	m.coinListAt = now
	m.mu.Unlock()
	return filtered, nil
}

func (m *Manager) fetchMarketsWithRetry(ctx context.Context, ids []string) (map[string]catalog.MarketEntry, error) {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		markets, err := m.catalog.Markets(ctx, ids)
		if err == nil {
			return markets, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(60 * time.Second):
		}
	}
	return nil, fmt.Errorf("markets batch exhausted retries: %w", lastErr)
}

func (m *Manager) throttle(ctx context.Context) {
	m.mu.Lock()
	wait := m.cfg.MinRequestInterval - time.Since(m.lastRequestAt)
	m.lastRequestAt = time.Now()
	m.mu.Unlock()
	if wait <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (m *Manager) consumeBudget() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budgetUsed >= m.cfg.DailyBudget {
		return false
	}
	m.budgetUsed++
	return true
}

func (m *Manager) resetBudgetIfNewDay(now time.Time) {
	day := now.Format("2006-01-02")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budgetDay != day {
		m.budgetDay = day
		m.budgetUsed = 0
	}
}

// publishMonitoredSet atomically replaces the monitored set with
// tokens passing the basic filter, evicting Rolling State for every
// mint that falls out. An empty candidate list never replaces a
// non-empty set.
func (m *Manager) publishMonitoredSet(tokens []domain.TokenCatalogEntry) {
	next := make(map[domain.MintID]domain.TokenCatalogEntry, len(tokens))
	for _, t := range tokens {
		if passesBasicFilter(t, m.cfg) {
			next[t.Mint] = t
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(next) == 0 && len(m.monitored) > 0 {
		return
	}

	removed := make([]domain.MintID, 0)
	for mint := range m.monitored {
		if _, ok := next[mint]; !ok {
			removed = append(removed, mint)
		}
	}
	m.monitored = next

	if m.evict != nil {
		for _, mint := range removed {
			m.evict.Evict(mint)
		}
	}
}
