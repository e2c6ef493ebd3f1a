// Package catalog is the external token-catalog HTTP client used by the
// Universe Manager to fetch the coin list and price/market batches.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-signal-pipeline/internal/httpretry"
)

// CoinListEntry is one row of the catalog's full coin list. Platforms
// maps chain name to that chain's contract/mint address for this coin.
type CoinListEntry struct {
	ID        string
	Symbol    string
	Name      string
	Platforms map[string]string
}

// MarketEntry is one id's price/market snapshot.
type MarketEntry struct {
	ID              string
	PriceUSD        float64
	MarketCapUSD    float64
	Volume24hUSD    float64
	Change24hPct    float64
	LastUpdatedAtTS int64
}

// Client is the catalog external interface the Universe Manager depends
// on; a fake implementation backs unit tests.
type Client interface {
	CoinList(ctx context.Context) ([]CoinListEntry, error)
	Markets(ctx context.Context, ids []string) (map[string]MarketEntry, error)
}

// HTTPClient implements Client against the plain GET+querystring
// catalog protocol, sharing httpretry's backoff/retry shape.
type HTTPClient struct {
	baseURL string
	apiKey  string
	retry   *httpretry.Client
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithRetryClient overrides the shared retry client (tests use this to
// inject short delays).
func WithRetryClient(c *httpretry.Client) Option {
	return func(h *HTTPClient) { h.retry = c }
}

// NewHTTPClient builds a catalog HTTP client against baseURL, authorized
// with apiKey.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		retry:   httpretry.New(httpretry.WithTimeout(30 * time.Second)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) authedRequest(endpoint string) httpretry.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("X-CG-API-KEY", c.apiKey)
		}
		return req, nil
	}
}

// CoinList fetches the full coin list, platform-tagged.
func (c *HTTPClient) CoinList(ctx context.Context) ([]CoinListEntry, error) {
	endpoint := fmt.Sprintf("%s/coins/list?include_platform=true", c.baseURL)
	body, err := c.retry.Do(ctx, c.authedRequest(endpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch coin list: %w", err)
	}

	var raw []struct {
		ID        string            `json:"id"`
		Symbol    string            `json:"symbol"`
		Name      string            `json:"name"`
		Platforms map[string]string `json:"platforms"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal coin list: %w", err)
	}

	out := make([]CoinListEntry, len(raw))
	for i, r := range raw {
		out[i] = CoinListEntry{ID: r.ID, Symbol: r.Symbol, Name: r.Name, Platforms: r.Platforms}
	}
	return out, nil
}

// Markets fetches price/market data for a batch of ids (size ≤ max batch,
// enforced by the caller).
func (c *HTTPClient) Markets(ctx context.Context, ids []string) (map[string]MarketEntry, error) {
	if len(ids) == 0 {
		return map[string]MarketEntry{}, nil
	}

	endpoint := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_market_cap=true&include_24hr_vol=true&include_24hr_change=true&include_last_updated_at=true",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")),
	)
	body, err := c.retry.Do(ctx, c.authedRequest(endpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	var raw map[string]struct {
		USD             float64 `json:"usd"`
		USDMarketCap    float64 `json:"usd_market_cap"`
		USD24hVol       float64 `json:"usd_24h_vol"`
		USD24hChange    float64 `json:"usd_24h_change"`
		LastUpdatedAtTS int64   `json:"last_updated_at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}

	out := make(map[string]MarketEntry, len(raw))
	for id, r := range raw {
		out[id] = MarketEntry{
			ID:              id,
			PriceUSD:        r.USD,
			MarketCapUSD:    r.USDMarketCap,
			Volume24hUSD:    r.USD24hVol,
			Change24hPct:    r.USD24hChange,
			LastUpdatedAtTS: r.LastUpdatedAtTS,
		}
	}
	return out, nil
}
