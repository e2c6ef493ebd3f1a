// Package parser classifies raw log lines and, once a transaction has
// been enriched, extracts pool-init and swap events from its token
// transfers. Classification is string/regexp matching over
// program-tagged log lines with in-flight state carried across the
// line scan; no raw instruction decoding is needed since enrichment
// already returns structured token transfers.
package parser

import (
	"regexp"
	"strings"
)

var swapPattern = regexp.MustCompile(`(?i)swap`)

// ClassifyLogs reports whether a transaction's log lines look like a
// pool initialization or a swap. Both may be true in principle; each
// is checked independently.
func ClassifyLogs(logs []string) (isPoolInit, isSwap bool) {
	for _, line := range logs {
		if !isPoolInit && (strings.Contains(line, "InitializePool") || strings.Contains(line, "initialize")) {
			isPoolInit = true
		}
		if !isSwap && swapPattern.MatchString(line) {
			isSwap = true
		}
		if isPoolInit && isSwap {
			break
		}
	}
	return isPoolInit, isSwap
}

// TokenTransfer is one entry of an enriched transaction's token
// transfer list.
type TokenTransfer struct {
	Mint        string
	TokenAmount float64
}

// aggregateByMint sums transfer amounts per mint, the way a
// transaction's net effect on each token account is computed.
func aggregateByMint(transfers []TokenTransfer) map[string]float64 {
	out := make(map[string]float64, len(transfers))
	for _, t := range transfers {
		out[t.Mint] += t.TokenAmount
	}
	return out
}

// PoolInitMint returns the first non-quote mint in transfers, for
// Store.upsert_pool.
func PoolInitMint(transfers []TokenTransfer, quoteMints map[string]bool) (string, bool) {
	for _, t := range transfers {
		if !quoteMints[t.Mint] {
			return t.Mint, true
		}
	}
	return "", false
}

// SwapQuote is the result of extracting a swap's target mint and
// quote-denominated price from its aggregated token transfers.
type SwapQuote struct {
	TargetMint   string
	QuoteMint    string
	PriceUSD     float64
	AmountTarget float64
	IsBuy        bool
	IsSell       bool
}

// ExtractSwap aggregates transfers by mint, picks the first non-quote
// mint with a positive amount as the target, and prices it against the
// USDC leg. Returns ok=false when either leg is missing or zero,
// signaling the caller to drop the event.
func ExtractSwap(transfers []TokenTransfer, quoteMints map[string]bool, usdcMint string) (SwapQuote, bool) {
	totals := aggregateByMint(transfers)

	var targetMint string
	var quoteMint string
	for _, t := range transfers {
		if quoteMints[t.Mint] {
			if quoteMint == "" {
				quoteMint = t.Mint
			}
			continue
		}
		if targetMint == "" && totals[t.Mint] > 0 {
			targetMint = t.Mint
		}
	}
	if targetMint == "" || quoteMint == "" {
		return SwapQuote{}, false
	}

	amountTarget := totals[targetMint]
	rawUSDC := totals[usdcMint]
	usdcAmount := rawUSDC
	if usdcAmount < 0 {
		usdcAmount = -usdcAmount
	}
	if amountTarget <= 0 || usdcAmount <= 0 {
		return SwapQuote{}, false
	}

	// A trader's USDC leg going negative means USDC left their wallet
	// into the pool in exchange for the target token: a buy.
	return SwapQuote{
		TargetMint:   targetMint,
		QuoteMint:    quoteMint,
		PriceUSD:     usdcAmount / amountTarget,
		AmountTarget: amountTarget,
		IsBuy:        rawUSDC < 0,
		IsSell:       rawUSDC > 0,
	}, true
}
