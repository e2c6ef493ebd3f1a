// Package signalengine is the sole consumer of the Ingestor's dispatched
// SwapEvents: it updates Rolling State, evaluates the composite signal
// predicate, enforces the cooldown, gates on a liquidity probe, and
// persists/forwards emitted signals.
package signalengine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/rolling"
	"solana-signal-pipeline/internal/signalengine/aggregator"
	"solana-signal-pipeline/internal/storage"
)

// Config holds the signal predicate thresholds and liquidity gate.
// internal/config sets MinVolumeSpike, MaxRSIOversold, MinLiquidityUSD,
// MaxPriceImpactPct and ProbeUSDAmount from the environment; the other
// fields keep DefaultConfig's values.
type Config struct {
	MinVolumeSpike    float64
	MinUniqueBuyers   int
	MaxRSIOversold    float64
	MinAvgVol         float64
	MinVol5m          float64
	SignalCooldown    int64
	MinLiquidityUSD   float64
	MaxPriceImpactPct float64
	ProbeUSDAmount    float64
	QuoteMint         string
	LamportsPerUnit   int64
}

// DefaultConfig returns the documented defaults. MinUniqueBuyers,
// MinAvgVol and MinVol5m have no documented default in the external
// interface list; these are this engine's own chosen thresholds.
func DefaultConfig() Config {
	return Config{
		MinVolumeSpike:    3.0,
		MinUniqueBuyers:   5,
		MaxRSIOversold:    35,
		MinAvgVol:         200,
		MinVol5m:          500,
		SignalCooldown:    1800,
		MinLiquidityUSD:   10000,
		MaxPriceImpactPct: 3.0,
		ProbeUSDAmount:    10,
		QuoteMint:         "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		LamportsPerUnit:   1_000_000,
	}
}

// liquidityBucket maps a price-impact percentage to an estimated
// liquidity floor, per the documented bucketed mapping.
func liquidityBucket(priceImpactPct float64) float64 {
	switch {
	case priceImpactPct < 0.5:
		return 50000
	case priceImpactPct < 1.0:
		return 25000
	case priceImpactPct < 2.0:
		return 15000
	case priceImpactPct < 3.0:
		return 10000
	default:
		return 5000
	}
}

// Engine is the signal-detection task: one goroutine consuming an
// events channel, the only writer of Rolling State apart from the
// Universe Manager's evictions.
type Engine struct {
	cfg        Config
	state      *rolling.State
	aggregator aggregator.Client
	signals    storage.SignalStore
	notify     func(int64)
	logger     *log.Logger
}

// New builds an Engine. notify is called with the new signal's id after
// a successful insert, handing off to the notifier dispatcher; it may
// be nil. logger defaults to log.Default() if nil.
func New(cfg Config, state *rolling.State, agg aggregator.Client, signals storage.SignalStore, notify func(int64), logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{cfg: cfg, state: state, aggregator: agg, signals: signals, notify: notify, logger: logger}
}

// Run consumes events until ctx is cancelled or the channel closes.
func (e *Engine) Run(ctx context.Context, events <-chan domain.SwapEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			e.handle(ctx, evt)
		}
	}
}

// handle applies one swap event end to end: state update, predicate
// evaluation, cooldown check, liquidity gate, persistence.
func (e *Engine) handle(ctx context.Context, evt domain.SwapEvent) {
	e.state.OnSwap(evt.Mint, evt)

	now := evt.TS
	m := e.state.Metrics(evt.Mint, now)

	reasons := matchedReasons(m, e.cfg)
	if len(reasons) == 0 {
		return
	}

	// A zero anchor means the mint has never signaled, so no cooldown applies.
	if last := e.state.LastSignalTS(evt.Mint); last != 0 && now-last < e.cfg.SignalCooldown {
		return
	}

	e.logSellAdvisory(evt.Mint, m)

	liquidityUSD, priceImpactPct, err := e.probeLiquidity(ctx, evt.Mint)
	if err != nil {
		e.logger.Printf("liquidity probe failed for %s: %v", evt.Mint, err)
		return
	}
	if liquidityUSD < e.cfg.MinLiquidityUSD || priceImpactPct > e.cfg.MaxPriceImpactPct {
		return
	}

	signal := &domain.EmittedSignal{
		Mint:     evt.Mint,
		Symbol:   evt.Symbol,
		SignalTS: now,
		EMACross: m.EMABull,
		VolSpike: m.VolumeSpike,
		RSI:      m.RSI,
		Reasons:  strings.Join(reasons, ","),
	}
	id, err := e.signals.InsertSignal(ctx, signal)
	if err != nil {
		e.logger.Printf("insert_signal failed for %s: %v", evt.Mint, err)
		return
	}
	e.state.SetLastSignalTS(evt.Mint, now)

	if e.notify != nil {
		e.notify(id)
	}
}

// matchedReasons evaluates the OR-composite predicate and names every
// clause that matched, for the signal's Reasons field.
func matchedReasons(m rolling.Metrics, cfg Config) []string {
	var reasons []string
	if m.VolumeSpike >= cfg.MinVolumeSpike {
		reasons = append(reasons, "volume_spike")
	}
	if m.UniqueBuyers >= cfg.MinUniqueBuyers {
		reasons = append(reasons, "unique_buyers")
	}
	if m.NetFlow > 1 {
		reasons = append(reasons, "net_flow")
	}
	if m.RSI <= cfg.MaxRSIOversold {
		reasons = append(reasons, "rsi_oversold")
	}
	if m.EMABull {
		reasons = append(reasons, "ema_bull")
	}
	if m.LiquidityBoost {
		reasons = append(reasons, "liquidity_boost")
	}
	if m.AvgVol60m >= cfg.MinAvgVol {
		reasons = append(reasons, "avg_vol_60m")
	}
	if m.Vol5m >= cfg.MinVol5m {
		reasons = append(reasons, "vol_5m")
	}
	return reasons
}

// logSellAdvisory logs the not-store-emitted exit signal for observability.
func (e *Engine) logSellAdvisory(mint domain.MintID, m rolling.Metrics) {
	if m.RSI > 70 || m.NetFlow < 1 {
		e.logger.Printf("sell advisory for %s: rsi=%.2f net_flow=%.2f", mint, m.RSI, m.NetFlow)
	}
}

// probeLiquidity requests a simulated probe_usd_amount quote->target
// swap and maps its price impact to an estimated liquidity floor.
func (e *Engine) probeLiquidity(ctx context.Context, mint domain.MintID) (liquidityUSD, priceImpactPct float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	amountLamports := int64(e.cfg.ProbeUSDAmount * float64(e.cfg.LamportsPerUnit))
	quote, err := e.aggregator.Quote(ctx, e.cfg.QuoteMint, string(mint), amountLamports)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregator quote: %w", err)
	}
	return liquidityBucket(quote.PriceImpactPct), quote.PriceImpactPct, nil
}
