// Package aggregator is the liquidity-probe HTTP client the Signal
// Engine calls before emitting a signal: a simulated quote-to-target
// swap quote whose price impact is mapped to an estimated liquidity
// bucket.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-signal-pipeline/internal/httpretry"
)

// Quote is the subset of the aggregator's response the Signal Engine
// needs: the price impact of the simulated swap.
type Quote struct {
	PriceImpactPct float64
	RoutePlan      []json.RawMessage
}

// Client is the aggregator external interface; a fake implementation
// backs unit tests.
type Client interface {
	Quote(ctx context.Context, inputMint, outputMint string, amountLamports int64) (Quote, error)
}

// HTTPClient implements Client against the GET /quote contract,
// sharing httpretry's backoff/retry shape with the catalog and
// enrichment clients.
type HTTPClient struct {
	baseURL string
	retry   *httpretry.Client
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithRetryClient overrides the shared retry client (tests use this to
// inject short delays).
func WithRetryClient(c *httpretry.Client) Option {
	return func(h *HTTPClient) { h.retry = c }
}

// NewHTTPClient builds an aggregator HTTP client against baseURL, with
// the 10s per-call deadline the aggregator quote call carries.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   httpretry.New(httpretry.WithTimeout(10 * time.Second)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type quoteResponse struct {
	PriceImpactPct json.Number       `json:"priceImpactPct"`
	RoutePlan      []json.RawMessage `json:"routePlan"`
}

func (c *HTTPClient) Quote(ctx context.Context, inputMint, outputMint string, amountLamports int64) (Quote, error) {
	endpoint := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%s",
		c.baseURL, url.QueryEscape(inputMint), url.QueryEscape(outputMint), strconv.FormatInt(amountLamports, 10))

	body, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return Quote{}, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Quote{}, fmt.Errorf("aggregator: decode quote response: %w", err)
	}
	impact, err := resp.PriceImpactPct.Float64()
	if err != nil {
		return Quote{}, fmt.Errorf("aggregator: parse priceImpactPct: %w", err)
	}
	return Quote{PriceImpactPct: impact, RoutePlan: resp.RoutePlan}, nil
}
