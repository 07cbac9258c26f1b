package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newTestServer(t *testing.T, handler func(req rpcRequest) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:      url,
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		PollInterval: time.Millisecond,
	})
}

func TestClient_GetUtxosAt(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		assert.Equal(t, "getUtxosAt", req.Method)
		return map[string]any{"result": []models.UTxO{{
			Ref:         models.OutRef{TxHash: "ab", Index: 2},
			Address:     "addr_test1xyz",
			Value:       map[string]uint64{"lovelace": 2_000_000},
			InlineDatum: "d87980",
		}}}
	})

	utxos, err := newTestClient(srv.URL).GetUtxosAt(context.Background(), "addr_test1xyz")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, "ab#2", utxos[0].Ref.String())
	assert.Equal(t, uint64(2_000_000), utxos[0].Amount(models.Lovelace))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": models.ChainTip{Slot: 10, Height: 5}})
	}))
	defer srv.Close()

	tip, err := newTestClient(srv.URL).GetChainTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tip.Slot)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetUtxosAt(context.Background(), "addr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Contains(t, err.Error(), "rate limited (429)")
}

func TestClient_SubmitNotResentAfterServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SubmitTx(context.Background(), []byte{0x84})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.NotContains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SubmitNotResentAfterTransportError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SubmitTx(context.Background(), []byte{0x84})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SubmitResentWhenRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": SubmitResult{TxHash: "beef", Accepted: true}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SubmitTx(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "beef", res.TxHash)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_GetDatum(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		var hash string
		_ = json.Unmarshal(req.Params[0], &hash)
		if hash == "known" {
			return map[string]any{"result": "d87980"}
		}
		return map[string]any{"result": nil}
	})
	c := newTestClient(srv.URL)

	raw, err := c.GetDatum(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "d87980", hex.EncodeToString(raw))

	raw, err = c.GetDatum(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClient_SubmitTx(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		var payload string
		_ = json.Unmarshal(req.Params[0], &payload)
		if payload == "00" {
			return map[string]any{"result": SubmitResult{Accepted: false, Error: "BadInputsUTxO"}}
		}
		return map[string]any{"result": SubmitResult{TxHash: "beef", Accepted: true}}
	})
	c := newTestClient(srv.URL)

	res, err := c.SubmitTx(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "beef", res.TxHash)

	_, err = c.SubmitTx(context.Background(), []byte{0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BadInputsUTxO")
}

func TestClient_RPCError(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		return map[string]any{"error": RPCError{Code: -32601, Message: "method not found"}}
	})

	_, err := newTestClient(srv.URL).GetUtxosByAsset(context.Background(), "addr", models.Lovelace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestClient_AwaitConfirmation(t *testing.T) {
	var polls atomic.Int32
	srv := newTestServer(t, func(req rpcRequest) any {
		assert.Equal(t, "getTxStatus", req.Method)
		return map[string]any{"result": TxStatus{Confirmed: polls.Add(1) >= 2}}
	})

	ok, err := newTestClient(srv.URL).AwaitConfirmation(context.Background(), "beef", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
