package txbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Builder turns structured requests into unsigned ledger transactions
type Builder interface {
	BuildSettlement(ctx context.Context, req SettlementRequest) (*UnsignedTx, error)
	BuildReclaim(ctx context.Context, req ReclaimRequest) (*UnsignedTx, error)
	BuildOrderExecution(ctx context.Context, req OrderExecuteRequest) (*UnsignedTx, error)
	BuildOrderCancel(ctx context.Context, req OrderCancelRequest) (*UnsignedTx, error)
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

var _ Builder = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("tx builder http %d", e.StatusCode)
	}
	return fmt.Sprintf("tx builder http %d: %s", e.StatusCode, b)
}

func (c *Client) BuildSettlement(ctx context.Context, req SettlementRequest) (*UnsignedTx, error) {
	if len(req.IntentRefs) == 0 {
		return nil, fmt.Errorf("intent refs are required")
	}
	if req.PoolRef.IsZero() {
		return nil, fmt.Errorf("pool ref is required")
	}
	if len(req.HopPoolRefs) != len(req.IntentRefs) {
		return nil, fmt.Errorf("hop pool refs: got %d, want one per intent (%d)", len(req.HopPoolRefs), len(req.IntentRefs))
	}
	for i, hops := range req.HopPoolRefs {
		if len(hops) == 0 || hops[0] != req.PoolRef {
			return nil, fmt.Errorf("hop pool refs of intent %d must start at the batch pool", i)
		}
	}
	if strings.TrimSpace(req.SolverAddress) == "" {
		return nil, fmt.Errorf("solver address is required")
	}
	return c.post(ctx, "/v1/tx/settlement", req)
}

func (c *Client) BuildReclaim(ctx context.Context, req ReclaimRequest) (*UnsignedTx, error) {
	if req.EscrowRef.IsZero() {
		return nil, fmt.Errorf("escrow ref is required")
	}
	if strings.TrimSpace(req.KeeperAddress) == "" {
		return nil, fmt.Errorf("keeper address is required")
	}
	if strings.TrimSpace(req.OwnerAddress) == "" {
		return nil, fmt.Errorf("owner address is required")
	}
	return c.post(ctx, "/v1/tx/reclaim", req)
}

func (c *Client) BuildOrderExecution(ctx context.Context, req OrderExecuteRequest) (*UnsignedTx, error) {
	if req.OrderRef.IsZero() {
		return nil, fmt.Errorf("order ref is required")
	}
	if req.PoolRef.IsZero() {
		return nil, fmt.Errorf("pool ref is required")
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("amount is required")
	}
	return c.post(ctx, "/v1/tx/order/execute", req)
}

func (c *Client) BuildOrderCancel(ctx context.Context, req OrderCancelRequest) (*UnsignedTx, error) {
	if req.OrderRef.IsZero() {
		return nil, fmt.Errorf("order ref is required")
	}
	if strings.TrimSpace(req.SenderAddress) == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	return c.post(ctx, "/v1/tx/order/cancel", req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*UnsignedTx, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out UnsignedTx
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode tx builder response: %w", err)
	}
	if out.CborHex == "" {
		return nil, fmt.Errorf("tx builder returned an empty transaction")
	}
	return &out, nil
}
