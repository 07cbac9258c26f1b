package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// Service is the ledger query surface used by the solver and keepers
type Service interface {
	GetUtxosAt(ctx context.Context, address string) ([]models.UTxO, error)
	GetUtxosByAsset(ctx context.Context, address string, asset models.AssetClass) ([]models.UTxO, error)
	// GetDatum returns nil without error when the hash is unknown
	GetDatum(ctx context.Context, hash string) ([]byte, error)
	GetChainTip(ctx context.Context) (models.ChainTip, error)
	SubmitTx(ctx context.Context, signed []byte) (SubmitResult, error)
	// AwaitConfirmation reports false, not an error, when the timeout elapses
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (bool, error)
}

var _ Service = (*Client)(nil)

func (c *Client) GetUtxosAt(ctx context.Context, address string) ([]models.UTxO, error) {
	var resp utxosResponse
	if err := c.Call(ctx, "getUtxosAt", []any{address}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getUtxosAt error: %w", resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) GetUtxosByAsset(ctx context.Context, address string, asset models.AssetClass) ([]models.UTxO, error) {
	var resp utxosResponse
	if err := c.Call(ctx, "getUtxosByAsset", []any{address, asset.String()}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getUtxosByAsset error: %w", resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) GetDatum(ctx context.Context, hash string) ([]byte, error) {
	var resp datumResponse
	if err := c.Call(ctx, "getDatum", []any{hash}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getDatum error: %w", resp.Error)
	}
	if resp.Result == nil {
		return nil, nil
	}
	raw, err := hex.DecodeString(*resp.Result)
	if err != nil {
		return nil, fmt.Errorf("getDatum: invalid hex: %w", err)
	}
	return raw, nil
}

func (c *Client) GetChainTip(ctx context.Context) (models.ChainTip, error) {
	var resp tipResponse
	if err := c.Call(ctx, "getChainTip", []any{}, &resp); err != nil {
		return models.ChainTip{}, err
	}
	if resp.Error != nil {
		return models.ChainTip{}, fmt.Errorf("getChainTip error: %w", resp.Error)
	}
	return resp.Result, nil
}

// SubmitTx sends a signed transaction. A ledger rejection is returned
// as an error carrying the rejection reason. Only 429 refusals are resent.
func (c *Client) SubmitTx(ctx context.Context, signed []byte) (SubmitResult, error) {
	var resp submitResponse
	if err := c.call(ctx, "submitTx", []any{hex.EncodeToString(signed)}, &resp, retryRefused); err != nil {
		return SubmitResult{}, fmt.Errorf("submitTx RPC failed: %w", err)
	}
	if resp.Error != nil {
		return SubmitResult{}, fmt.Errorf("submitTx error: code=%d, message=%s", resp.Error.Code, resp.Error.Message)
	}
	if !resp.Result.Accepted {
		return resp.Result, fmt.Errorf("submitTx rejected: %s", resp.Result.Error)
	}
	return resp.Result, nil
}

// TxStatus fetches the confirmation state of a transaction
func (c *Client) TxStatus(ctx context.Context, txHash string) (TxStatus, error) {
	var resp statusResponse
	if err := c.Call(ctx, "getTxStatus", []any{txHash}, &resp); err != nil {
		return TxStatus{}, err
	}
	if resp.Error != nil {
		return TxStatus{}, fmt.Errorf("getTxStatus error: %w", resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (bool, error) {
	return WaitForConfirmation(ctx, c, txHash, ConfirmOptions{
		Timeout:      timeout,
		PollInterval: c.pollInterval,
		Logger:       c.logger,
	})
}
