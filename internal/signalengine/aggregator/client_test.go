package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/httpretry"
)

func TestQuote_ParsesPriceImpact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "mintA", r.URL.Query().Get("inputMint"))
		assert.Equal(t, "mintB", r.URL.Query().Get("outputMint"))
		assert.Equal(t, "1000", r.URL.Query().Get("amount"))
		w.Write([]byte(`{"priceImpactPct":"0.42","routePlan":[{"a":1}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryClient(httpretry.New(httpretry.WithRetryDelay(time.Millisecond))))
	q, err := c.Quote(context.Background(), "mintA", "mintB", 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, q.PriceImpactPct, 0.0001)
	require.Len(t, q.RoutePlan, 1)
}

func TestQuote_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryClient(httpretry.New(httpretry.WithMaxRetries(1), httpretry.WithRetryDelay(time.Millisecond))))
	_, err := c.Quote(context.Background(), "mintA", "mintB", 1000)
	assert.Error(t, err)
}
