// Package mocks holds in-memory collaborators for tests.
package mocks

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// Ledger is an in-memory ledger.Service
type Ledger struct {
	mu sync.Mutex

	Utxos  map[string][]models.UTxO // by address
	Datums map[string][]byte        // by hash
	Tip    models.ChainTip

	QueryErr  error
	SubmitErr error
	// Confirm is returned by AwaitConfirmation; ConfirmErr alongside it
	Confirm    bool
	ConfirmErr error

	Submitted []string // hex of submitted transactions
	Awaited   []string // tx hashes awaited
}

var _ ledger.Service = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		Utxos:   map[string][]models.UTxO{},
		Datums:  map[string][]byte{},
		Confirm: true,
	}
}

func (l *Ledger) AddUtxo(address string, u models.UTxO) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Utxos[address] = append(l.Utxos[address], u)
}

func (l *Ledger) GetUtxosAt(_ context.Context, address string) ([]models.UTxO, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.QueryErr != nil {
		return nil, l.QueryErr
	}
	return append([]models.UTxO(nil), l.Utxos[address]...), nil
}

func (l *Ledger) GetUtxosByAsset(ctx context.Context, address string, asset models.AssetClass) ([]models.UTxO, error) {
	all, err := l.GetUtxosAt(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make([]models.UTxO, 0, len(all))
	for _, u := range all {
		if u.Amount(asset) > 0 {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *Ledger) GetDatum(_ context.Context, hash string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.QueryErr != nil {
		return nil, l.QueryErr
	}
	return l.Datums[hash], nil
}

func (l *Ledger) GetChainTip(_ context.Context) (models.ChainTip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Tip, l.QueryErr
}

func (l *Ledger) SubmitTx(_ context.Context, signed []byte) (ledger.SubmitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SubmitErr != nil {
		return ledger.SubmitResult{Error: l.SubmitErr.Error()}, l.SubmitErr
	}
	l.Submitted = append(l.Submitted, hex.EncodeToString(signed))
	return ledger.SubmitResult{TxHash: fmt.Sprintf("tx%d", len(l.Submitted)), Accepted: true}, nil
}

func (l *Ledger) AwaitConfirmation(_ context.Context, txHash string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Awaited = append(l.Awaited, txHash)
	return l.Confirm, l.ConfirmErr
}

// SubmittedCount returns how many transactions were accepted
func (l *Ledger) SubmittedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Submitted)
}
