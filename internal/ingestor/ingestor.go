// Package ingestor wires the WebSocket log stream, the enrichment
// client and the log classifier into a single pipeline producing
// SwapEvents for the Signal Engine.
package ingestor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/ingestor/enrichment"
	"solana-signal-pipeline/internal/ingestor/parser"
	"solana-signal-pipeline/internal/ingestor/ws"
	"solana-signal-pipeline/internal/storage"
)

// MonitoredChecker is the read-side of the Universe Manager's
// monitored set, satisfied by internal/universe.Manager.
type MonitoredChecker interface {
	IsMonitored(mint domain.MintID) bool
	Symbol(mint domain.MintID) string
}

// Config controls the ingestor's gating behavior.
type Config struct {
	EventBufferSize    int
	MinRequestInterval time.Duration
	MinTokenAge        time.Duration
	USDCMint           string
	WSOLMint           string
}

// DefaultConfig returns the documented defaults: a 4096-event buffer,
// 3s enrichment request spacing, 14-day token age gate.
func DefaultConfig() Config {
	return Config{
		EventBufferSize:    4096,
		MinRequestInterval: 3 * time.Second,
		MinTokenAge:        14 * 24 * time.Hour,
		USDCMint:           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		WSOLMint:           "So11111111111111111111111111111111111111112",
	}
}

// Stats are the cumulative counters the Scheduler's 10-minute activity
// snapshot reports.
type Stats struct {
	Messages      int64
	Errors        int64
	PoolEvents    int64
	SwapEvents    int64
	DroppedEvents int64
}

// Ingestor runs the per-notification pipeline: classify, enrich,
// extract, gate, dispatch.
type Ingestor struct {
	cfg        Config
	ws         *ws.Client
	enrichment enrichment.Client
	pools      storage.PoolStore
	ohlcv      storage.OHLCVStore
	monitored  MonitoredChecker
	logger     *log.Logger

	quoteMints map[string]bool

	events chan domain.SwapEvent

	mu            sync.Mutex
	lastRequestAt time.Time

	messages      atomic.Int64
	errors        atomic.Int64
	poolEvents    atomic.Int64
	swapEvents    atomic.Int64
	droppedEvents atomic.Int64
}

// New builds an Ingestor. logger defaults to log.Default() if nil.
func New(cfg Config, wsClient *ws.Client, enrichmentClient enrichment.Client, pools storage.PoolStore, ohlcv storage.OHLCVStore, monitored MonitoredChecker, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestor{
		cfg:        cfg,
		ws:         wsClient,
		enrichment: enrichmentClient,
		pools:      pools,
		ohlcv:      ohlcv,
		monitored:  monitored,
		logger:     logger,
		quoteMints: map[string]bool{cfg.USDCMint: true, cfg.WSOLMint: true},
		events:     make(chan domain.SwapEvent, cfg.EventBufferSize),
	}
}

// Events is the dispatch channel the Signal Engine consumes.
func (g *Ingestor) Events() <-chan domain.SwapEvent { return g.events }

// Snapshot returns the current counters.
func (g *Ingestor) Snapshot() Stats {
	return Stats{
		Messages:      g.messages.Load(),
		Errors:        g.errors.Load(),
		PoolEvents:    g.poolEvents.Load(),
		SwapEvents:    g.swapEvents.Load(),
		DroppedEvents: g.droppedEvents.Load(),
	}
}

// Run consumes ws notifications until ctx is cancelled or the
// WebSocket client raises fatal.
func (g *Ingestor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-g.ws.Fatal():
			return err
		case notif := <-g.ws.Notifications():
			g.handle(ctx, notif)
		}
	}
}

func (g *Ingestor) handle(ctx context.Context, notif ws.LogNotification) {
	g.messages.Add(1)

	isPoolInit, isSwap := parser.ClassifyLogs(notif.Logs)
	if !isPoolInit && !isSwap {
		return
	}

	g.throttle(ctx)

	txs, err := g.enrichment.GetTransactions(ctx, []string{notif.Signature})
	if err != nil || len(txs) == 0 {
		g.errors.Add(1)
		if err != nil {
			g.logger.Printf("enrichment fetch failed for %s: %v", notif.Signature, err)
		}
		return
	}
	tx := txs[0]

	ts := tx.TimestampTS
	if ts == 0 {
		ts = time.Now().Unix()
	}

	transfers := make([]parser.TokenTransfer, len(tx.TokenTransfers))
	for i, t := range tx.TokenTransfers {
		transfers[i] = parser.TokenTransfer{Mint: t.Mint, TokenAmount: t.TokenAmount}
	}

	if isPoolInit {
		g.handlePoolInit(ctx, transfers, ts)
	}
	if isSwap {
		g.handleSwap(ctx, transfers, ts)
	}
}

func (g *Ingestor) handlePoolInit(ctx context.Context, transfers []parser.TokenTransfer, ts int64) {
	mint, ok := parser.PoolInitMint(transfers, g.quoteMints)
	if !ok {
		g.errors.Add(1)
		return
	}
	if err := g.pools.UpsertPool(ctx, domain.MintID(mint), ts, nil, nil); err != nil {
		g.errors.Add(1)
		g.logger.Printf("upsert_pool failed for %s: %v", mint, err)
		return
	}
	g.poolEvents.Add(1)
}

func (g *Ingestor) handleSwap(ctx context.Context, transfers []parser.TokenTransfer, ts int64) {
	quote, ok := parser.ExtractSwap(transfers, g.quoteMints, g.cfg.USDCMint)
	if !ok {
		g.errors.Add(1)
		return
	}

	mint := domain.MintID(quote.TargetMint)
	pool, err := g.pools.GetPool(ctx, mint)
	if err != nil {
		g.errors.Add(1)
		return
	}

	passesAge := ts-pool.FirstSeenTS >= int64(g.cfg.MinTokenAge.Seconds())
	if !passesAge {
		return
	}

	volUSD := quote.PriceUSD * quote.AmountTarget
	if err := g.ohlcv.IngestSwap(ctx, mint, quote.PriceUSD, volUSD, ts); err != nil {
		g.errors.Add(1)
		g.logger.Printf("ingest_swap failed for %s: %v", mint, err)
		return
	}
	g.swapEvents.Add(1)

	if g.monitored == nil || !g.monitored.IsMonitored(mint) {
		return
	}

	event := domain.SwapEvent{
		Mint:     mint,
		Symbol:   g.monitored.Symbol(mint),
		PriceUSD: quote.PriceUSD,
		VolUSD:   volUSD,
		TS:       ts,
		IsBuy:    quote.IsBuy,
		IsSell:   quote.IsSell,
	}
	g.dispatch(event)
}

// dispatch sends non-blocking; on a full buffer it drops the oldest
// queued event to keep the stream current for signal detection.
func (g *Ingestor) dispatch(e domain.SwapEvent) {
	select {
	case g.events <- e:
		return
	default:
	}

	select {
	case <-g.events:
		g.droppedEvents.Add(1)
	default:
	}

	select {
	case g.events <- e:
	default:
	}
}

func (g *Ingestor) throttle(ctx context.Context) {
	g.mu.Lock()
	wait := g.cfg.MinRequestInterval - time.Since(g.lastRequestAt)
	g.lastRequestAt = time.Now()
	g.mu.Unlock()
	if wait <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
