// Package enrichment fetches full transaction details for signatures
// flagged by the log classifier, over the POST-based enrichment
// endpoint, sharing the retry/backoff shape used by the catalog and
// aggregator clients.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solana-signal-pipeline/internal/httpretry"
)

// Transaction is one enriched transaction: timestamp and token
// transfers, the only fields the ingestor consumes.
type Transaction struct {
	Signature      string
	TimestampTS    int64
	TokenTransfers []TokenTransfer
}

// TokenTransfer mirrors the enrichment endpoint's transfer shape.
type TokenTransfer struct {
	Mint        string  `json:"mint"`
	TokenAmount float64 `json:"tokenAmount"`
}

// Client fetches enriched transaction details by signature.
type Client interface {
	GetTransactions(ctx context.Context, signatures []string) ([]Transaction, error)
}

// HTTPClient implements Client against the POST {transactions: [...]}
// enrichment endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	retry   *httpretry.Client
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithRetryClient overrides the shared retry client.
func WithRetryClient(c *httpretry.Client) Option {
	return func(h *HTTPClient) { h.retry = c }
}

// NewHTTPClient builds an enrichment client against baseURL.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		retry:   httpretry.New(httpretry.WithTimeout(15 * time.Second)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type requestBody struct {
	Transactions []string `json:"transactions"`
}

type responseTx struct {
	Timestamp      int64 `json:"timestamp"`
	TokenTransfers []struct {
		Mint        string  `json:"mint"`
		TokenAmount float64 `json:"tokenAmount"`
	} `json:"tokenTransfers"`
}

// GetTransactions fetches enriched details for signatures in one
// batched request.
func (c *HTTPClient) GetTransactions(ctx context.Context, signatures []string) ([]Transaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(requestBody{Transactions: signatures})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-KEY", c.apiKey)
		}
		return req, nil
	}

	body, err := c.retry.Do(ctx, build)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	var raw []responseTx
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}

	out := make([]Transaction, len(raw))
	for i, r := range raw {
		transfers := make([]TokenTransfer, len(r.TokenTransfers))
		for j, t := range r.TokenTransfers {
			transfers[j] = TokenTransfer{Mint: t.Mint, TokenAmount: t.TokenAmount}
		}
		sig := ""
		if i < len(signatures) {
			sig = signatures[i]
		}
		out[i] = Transaction{Signature: sig, TimestampTS: r.Timestamp, TokenTransfers: transfers}
	}
	return out, nil
}
