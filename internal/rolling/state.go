// Package rolling maintains the bounded per-mint window of recent
// candles and swaps that the Signal Engine consults on every event. The
// Signal Engine task writes it and the Universe Manager evicts from it,
// so every method takes the registry's mutex.
package rolling

import (
	"sync"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/indicator"
)

// Candles and swap history are bounded to this many entries.
const ringCapacity = 120

// icebergFloorUSD is the minimum swap size counted toward buy/sell
// volume; smaller swaps still count toward the unique-buyer set.
const icebergFloorUSD = 50

// lpBoostWindowSeconds is how long liquidity_boost stays true after a
// qualifying deposit.
const lpBoostWindowSeconds = 600

// lpDepositThresholdUSD is the minimum deposit that sets liquidity_boost.
const lpDepositThresholdUSD = 5000

// swapEntry is one ring-buffer slot of swap_history.
type swapEntry struct {
	ts     int64
	buyer  string
	isBuy  bool
	isSell bool
	usd    float64
}

// mintState is the per-mint window: candles, swap history, and
// LP-boost tracking.
type mintState struct {
	candles        []*domain.OHLCVBucket
	swaps          []swapEntry
	lastSignalTS   int64
	lastDepositTS  int64
	liquidityBoost bool
}

// Metrics is the snapshot Metrics returns for the Signal Engine's rule
// evaluation.
type Metrics struct {
	EMABull        bool
	RSI            float64
	ATR            float64
	Vol5m          float64
	AvgVol60m      float64
	VolumeSpike    float64
	NetFlow        float64
	UniqueBuyers   int
	LiquidityBoost bool
}

// State is the registry of per-mint rolling windows.
type State struct {
	mu    sync.Mutex
	mints map[domain.MintID]*mintState
}

// New creates an empty rolling-state registry.
func New() *State {
	return &State{mints: make(map[domain.MintID]*mintState)}
}

func (s *State) get(mint domain.MintID) *mintState {
	m, ok := s.mints[mint]
	if !ok {
		m = &mintState{}
		s.mints[mint] = m
	}
	return m
}

// OnSwap applies a swap event to mint's rolling state: finds or creates
// the candle for the swap's minute bucket, pushes to swap_history
// (trimmed to ringCapacity), and updates LP-boost tracking.
func (s *State) OnSwap(mint domain.MintID, e domain.SwapEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.get(mint)

	bucketTS := domain.BucketTS(e.TS)
	if n := len(m.candles); n > 0 && m.candles[n-1].BucketTS == bucketTS {
		b := m.candles[n-1]
		if e.PriceUSD > b.High {
			b.High = e.PriceUSD
		}
		if e.PriceUSD < b.Low {
			b.Low = e.PriceUSD
		}
		b.Close = e.PriceUSD
		b.Volume += e.VolUSD
	} else {
		m.candles = append(m.candles, &domain.OHLCVBucket{
			Mint: mint, BucketTS: bucketTS,
			Open: e.PriceUSD, High: e.PriceUSD, Low: e.PriceUSD, Close: e.PriceUSD,
			Volume: e.VolUSD,
		})
		if len(m.candles) > ringCapacity {
			m.candles = m.candles[len(m.candles)-ringCapacity:]
		}
	}

	m.swaps = append(m.swaps, swapEntry{
		ts: e.TS, buyer: e.Buyer, isBuy: e.IsBuy, isSell: e.IsSell, usd: e.VolUSD,
	})
	if len(m.swaps) > ringCapacity {
		m.swaps = m.swaps[len(m.swaps)-ringCapacity:]
	}

	if e.DepositUSD != nil && *e.DepositUSD > lpDepositThresholdUSD {
		m.lastDepositTS = e.TS
		m.liquidityBoost = true
	}
}

// Metrics computes the indicator snapshot for mint as of now, scanning
// the bounded swap_history and candle rings.
func (s *State) Metrics(mint domain.MintID, now int64) Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mints[mint]
	if !ok {
		return Metrics{}
	}

	m.liquidityBoost = m.liquidityBoost && now-m.lastDepositTS < lpBoostWindowSeconds

	closes := make([]float64, len(m.candles))
	candles := make([]indicator.Candle, len(m.candles))
	for i, b := range m.candles {
		closes[i] = b.Close
		candles[i] = indicator.Candle{High: b.High, Low: b.Low, Close: b.Close}
	}

	buyers := make(map[string]struct{})
	var buyVol5m, sellVol5m, vol5m, vol30m, vol60m float64
	for _, sw := range m.swaps {
		age := now - sw.ts
		if age < 0 {
			continue
		}
		if age < 300 {
			if sw.buyer != "" {
				buyers[sw.buyer] = struct{}{}
			}
			if sw.usd >= icebergFloorUSD {
				if sw.isBuy {
					buyVol5m += sw.usd
				}
				if sw.isSell {
					sellVol5m += sw.usd
				}
				vol5m += sw.usd
			}
		}
		if age < 1800 {
			vol30m += sw.usd
		}
		if age < 3600 {
			vol60m += sw.usd
		}
	}

	return Metrics{
		EMABull:        indicator.EMABullish(closes),
		RSI:            indicator.RSI(closes, 14),
		ATR:            indicator.ATR(candles, 14),
		Vol5m:          vol5m,
		AvgVol60m:      vol60m / 60,
		VolumeSpike:    indicator.VolumeSpike(vol5m, vol30m/30),
		NetFlow:        indicator.NetFlow(buyVol5m, sellVol5m),
		UniqueBuyers:   len(buyers),
		LiquidityBoost: m.liquidityBoost,
	}
}

// LastSignalTS returns the cooldown anchor for mint.
func (s *State) LastSignalTS(mint domain.MintID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mints[mint]
	if !ok {
		return 0
	}
	return m.lastSignalTS
}

// SetLastSignalTS updates the cooldown anchor for mint after a signal
// is emitted.
func (s *State) SetLastSignalTS(mint domain.MintID, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(mint).lastSignalTS = ts
}

// Evict removes all in-memory state for mint, called when it leaves the
// monitored set.
func (s *State) Evict(mint domain.MintID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mints, mint)
}

// CandleCount and SwapCount are test/diagnostic helpers exposing ring
// sizes without leaking the backing slices.
func (s *State) CandleCount(mint domain.MintID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mints[mint]
	if !ok {
		return 0
	}
	return len(m.candles)
}

func (s *State) SwapCount(mint domain.MintID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mints[mint]
	if !ok {
		return 0
	}
	return len(m.swaps)
}
