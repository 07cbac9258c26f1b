package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/aman-zulfiqar/escrow-solver/internal/txbuilder"
)

// TxBuilder records requests and returns canned unsigned transactions
type TxBuilder struct {
	mu sync.Mutex

	Err error
	// FailFor makes builds touching these escrow refs (txhash#index) fail
	FailFor map[string]bool
	// Continuing is reported as the continuing output of order executions
	Continuing *uint32

	Settlements []txbuilder.SettlementRequest
	Reclaims    []txbuilder.ReclaimRequest
	Executions  []txbuilder.OrderExecuteRequest
	Cancels     []txbuilder.OrderCancelRequest
}

var _ txbuilder.Builder = (*TxBuilder)(nil)

func NewTxBuilder() *TxBuilder {
	return &TxBuilder{FailFor: map[string]bool{}}
}

func (b *TxBuilder) unsigned(n int) *txbuilder.UnsignedTx {
	return &txbuilder.UnsignedTx{CborHex: "84a0a0f5f6", TxHash: fmt.Sprintf("built%d", n), Fee: 170_000}
}

func (b *TxBuilder) BuildSettlement(_ context.Context, req txbuilder.SettlementRequest) (*txbuilder.UnsignedTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	for _, ref := range req.IntentRefs {
		if b.FailFor[ref.String()] {
			return nil, fmt.Errorf("cannot spend %s", ref)
		}
	}
	b.Settlements = append(b.Settlements, req)
	return b.unsigned(len(b.Settlements)), nil
}

func (b *TxBuilder) BuildReclaim(_ context.Context, req txbuilder.ReclaimRequest) (*txbuilder.UnsignedTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if b.FailFor[req.EscrowRef.String()] {
		return nil, fmt.Errorf("cannot spend %s", req.EscrowRef)
	}
	b.Reclaims = append(b.Reclaims, req)
	return b.unsigned(len(b.Reclaims)), nil
}

func (b *TxBuilder) BuildOrderExecution(_ context.Context, req txbuilder.OrderExecuteRequest) (*txbuilder.UnsignedTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if b.FailFor[req.OrderRef.String()] {
		return nil, fmt.Errorf("cannot spend %s", req.OrderRef)
	}
	b.Executions = append(b.Executions, req)
	tx := b.unsigned(len(b.Executions))
	tx.ContinuingOutput = b.Continuing
	return tx, nil
}

func (b *TxBuilder) BuildOrderCancel(_ context.Context, req txbuilder.OrderCancelRequest) (*txbuilder.UnsignedTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if b.FailFor[req.OrderRef.String()] {
		return nil, fmt.Errorf("cannot spend %s", req.OrderRef)
	}
	b.Cancels = append(b.Cancels, req)
	return b.unsigned(len(b.Cancels)), nil
}
