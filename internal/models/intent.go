package models

import (
	"math/big"
	"time"
)

// EscrowIntent is the decoded off-chain view of an escrow output
type EscrowIntent struct {
	Ref            OutRef
	Owner          []byte // payment credential hash
	InputAsset     AssetClass
	InputAmount    uint64
	OutputAsset    AssetClass
	MinOutput      uint64
	Deadline       time.Time
	PartialFill    bool
	RemainingInput uint64
	FilledOutput   uint64
	FillCount      uint64
}

// Key identifies the intent by its escrow output
func (i *EscrowIntent) Key() string {
	return i.Ref.String()
}

// Expired reports whether the deadline is at or before now
func (i *EscrowIntent) Expired(now time.Time) bool {
	return !i.Deadline.After(now)
}

// EffectiveInput is the amount still to be swapped
func (i *EscrowIntent) EffectiveInput() uint64 {
	if i.PartialFill && i.FillCount > 0 && i.RemainingInput > 0 && i.RemainingInput < i.InputAmount {
		return i.RemainingInput
	}
	return i.InputAmount
}

// EffectiveMinOutput scales MinOutput to EffectiveInput, rounding up
func (i *EscrowIntent) EffectiveMinOutput() uint64 {
	in := i.EffectiveInput()
	if in == i.InputAmount || i.InputAmount == 0 {
		return i.MinOutput
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(i.MinOutput), new(big.Int).SetUint64(in))
	den := new(big.Int).SetUint64(i.InputAmount)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

type IntentStatus string

const (
	IntentStatusPending         IntentStatus = "PENDING"
	IntentStatusPartiallyFilled IntentStatus = "PARTIALLY_FILLED"
	IntentStatusFilled          IntentStatus = "FILLED"
	IntentStatusExpired         IntentStatus = "EXPIRED"
	IntentStatusReclaimed       IntentStatus = "RECLAIMED"
	IntentStatusCancelled       IntentStatus = "CANCELLED"
)

// Open reports whether the status can still be settled or expire
func (s IntentStatus) Open() bool {
	return s == IntentStatusPending || s == IntentStatusPartiallyFilled
}

// Intent is the persisted bookkeeping record of an escrow intent
type Intent struct {
	ID            string       `json:"id"`
	Status        IntentStatus `json:"status"`
	EscrowRef     *OutRef      `json:"escrow_ref,omitempty"`
	OwnerAddress  string       `json:"owner_address"`
	InputAsset    AssetClass   `json:"input_asset"`
	OutputAsset   AssetClass   `json:"output_asset"`
	InputAmount   uint64       `json:"input_amount"`
	MinOutput     uint64       `json:"min_output"`
	DeadlineMs    int64        `json:"deadline_ms"`
	SettledTxHash string       `json:"settled_tx_hash,omitempty"`
	CreatedAtMs   int64        `json:"created_at_ms"`
	UpdatedAtMs   int64        `json:"updated_at_ms"`
}
