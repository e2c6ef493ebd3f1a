package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
const wsolMint = "So11111111111111111111111111111111111111112"

func quoteMints() map[string]bool {
	return map[string]bool{usdcMint: true, wsolMint: true}
}

func TestClassifyLogs_DetectsPoolInit(t *testing.T) {
	isPoolInit, isSwap := ClassifyLogs([]string{"Program log: Instruction: InitializePool"})
	assert.True(t, isPoolInit)
	assert.False(t, isSwap)
}

func TestClassifyLogs_DetectsSwapCaseInsensitive(t *testing.T) {
	isPoolInit, isSwap := ClassifyLogs([]string{"Program log: SWAP executed"})
	assert.False(t, isPoolInit)
	assert.True(t, isSwap)
}

func TestClassifyLogs_NeitherMatches(t *testing.T) {
	isPoolInit, isSwap := ClassifyLogs([]string{"Program log: Instruction: Transfer"})
	assert.False(t, isPoolInit)
	assert.False(t, isSwap)
}

func TestPoolInitMint_SkipsQuoteMints(t *testing.T) {
	transfers := []TokenTransfer{{Mint: wsolMint, TokenAmount: -1}, {Mint: "targetMint", TokenAmount: 100}}
	mint, ok := PoolInitMint(transfers, quoteMints())
	assert.True(t, ok)
	assert.Equal(t, "targetMint", mint)
}

func TestExtractSwap_QuoteDetection(t *testing.T) {
	// property 10: transfers = [{USDC, -a}, {X, +b}], a,b > 0 => target=X, price=a/b
	transfers := []TokenTransfer{
		{Mint: usdcMint, TokenAmount: -50},
		{Mint: "targetMint", TokenAmount: 20},
	}
	quote, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	assert.True(t, ok)
	assert.Equal(t, "targetMint", quote.TargetMint)
	assert.Equal(t, 2.5, quote.PriceUSD)
	assert.Equal(t, 20.0, quote.AmountTarget)
}

func TestExtractSwap_ZeroAmountTargetDrops(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: usdcMint, TokenAmount: -50},
		{Mint: "targetMint", TokenAmount: 0},
	}
	_, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	assert.False(t, ok)
}

func TestExtractSwap_ZeroUSDCAmountDrops(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: usdcMint, TokenAmount: 0},
		{Mint: "targetMint", TokenAmount: 20},
	}
	_, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	assert.False(t, ok)
}

func TestExtractSwap_MissingQuoteLegDrops(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: "targetMint", TokenAmount: 20},
		{Mint: "otherMint", TokenAmount: 5},
	}
	_, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	assert.False(t, ok)
}

func TestExtractSwap_NegativeUSDCLegIsBuy(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: usdcMint, TokenAmount: -50},
		{Mint: "targetMint", TokenAmount: 20},
	}
	quote, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	require.True(t, ok)
	assert.True(t, quote.IsBuy)
	assert.False(t, quote.IsSell)
}

func TestExtractSwap_PositiveUSDCLegIsSell(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: usdcMint, TokenAmount: 50},
		{Mint: "targetMint", TokenAmount: 20},
	}
	quote, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	require.True(t, ok)
	assert.False(t, quote.IsBuy)
	assert.True(t, quote.IsSell)
}

func TestExtractSwap_WSOLAsQuoteLeg(t *testing.T) {
	transfers := []TokenTransfer{
		{Mint: wsolMint, TokenAmount: -3},
		{Mint: usdcMint, TokenAmount: -60},
		{Mint: "targetMint", TokenAmount: 10},
	}
	quote, ok := ExtractSwap(transfers, quoteMints(), usdcMint)
	assert.True(t, ok)
	assert.Equal(t, "targetMint", quote.TargetMint)
	assert.Equal(t, 6.0, quote.PriceUSD)
}
