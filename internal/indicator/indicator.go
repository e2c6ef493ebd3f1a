// Package indicator computes technical indicators over price/candle
// series. Every function is pure: inputs are read-only slices, outputs
// are plain values, there is no I/O.
package indicator

import "math"

// EMA computes the exponential moving average of series over period,
// seeded with the first value and recursed forward: e_i = p*x_i +
// (1-p)*e_{i-1}, p = 2/(period+1). Returns (0, false) when there are
// fewer than period points.
func EMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	p := 2.0 / (float64(period) + 1.0)
	e := series[0]
	for _, x := range series[1:] {
		e = p*x + (1-p)*e
	}
	return e, true
}

// RSI computes the Wilder-smoothed relative strength index over period
// (default 14), clamped to [0, 100]. Returns 100 when average loss is 0.
func RSI(series []float64, period int) float64 {
	if period <= 0 {
		period = 14
	}
	if len(series) < period+1 {
		return 0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := series[i] - series[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return clamp(rsi, 0, 100)
}

// Candle is the minimal OHLC view ATR needs.
type Candle struct {
	High  float64
	Low   float64
	Close float64
}

// ATR computes the Wilder-smoothed average true range over period
// (default 14). True range is max(h-l, |h-prevClose|, |l-prevClose|).
func ATR(candles []Candle, period int) float64 {
	if period <= 0 {
		period = 14
	}
	if len(candles) < period+1 {
		return 0
	}

	trueRange := func(c Candle, prevClose float64) float64 {
		tr := c.High - c.Low
		tr = math.Max(tr, math.Abs(c.High-prevClose))
		tr = math.Max(tr, math.Abs(c.Low-prevClose))
		return tr
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += trueRange(candles[i], candles[i-1].Close)
	}
	atr /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		tr := trueRange(candles[i], candles[i-1].Close)
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// VolumeSpike is vol5m / (avgVol30m * 5), or 0 when the denominator is
// non-positive.
func VolumeSpike(vol5m, avgVol30m float64) float64 {
	denom := avgVol30m * 5
	if denom <= 0 {
		return 0
	}
	return vol5m / denom
}

// PositiveNetFlowSentinel stands in for "no sells observed": returning
// 0 for sell=0 would penalize a token with literally no sell pressure,
// which is backwards. Buy-side pressure with zero sells is treated as
// strongly positive flow.
const PositiveNetFlowSentinel = math.MaxFloat64

// NetFlow is buy/sell, or PositiveNetFlowSentinel when sell is 0.
func NetFlow(buy, sell float64) float64 {
	if sell > 0 {
		return buy / sell
	}
	return PositiveNetFlowSentinel
}

// EMABullish reports whether the 12-period EMA is above the 26-period
// EMA. False (not bullish) when either EMA is undefined.
func EMABullish(series []float64) bool {
	fast, okFast := EMA(series, 12)
	slow, okSlow := EMA(series, 26)
	if !okFast || !okSlow {
		return false
	}
	return fast > slow
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
