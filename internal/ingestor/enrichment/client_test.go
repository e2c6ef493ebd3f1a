package enrichment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/httpretry"
)

func TestGetTransactions_ParsesTokenTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req requestBody
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, []string{"sig1"}, req.Transactions)

		w.Write([]byte(`[{"timestamp":1000,"tokenTransfers":[{"mint":"USDC","tokenAmount":-50},{"mint":"X","tokenAmount":20}]}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", WithRetryClient(httpretry.New(httpretry.WithRetryDelay(time.Millisecond))))
	txs, err := c.GetTransactions(context.Background(), []string{"sig1"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "sig1", txs[0].Signature)
	assert.Equal(t, int64(1000), txs[0].TimestampTS)
	require.Len(t, txs[0].TokenTransfers, 2)
	assert.Equal(t, "X", txs[0].TokenTransfers[1].Mint)
}

func TestGetTransactions_EmptyShortCircuits(t *testing.T) {
	c := NewHTTPClient("http://unused.invalid", "key")
	txs, err := c.GetTransactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, txs)
}
