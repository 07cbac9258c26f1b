package txbuilder

import "github.com/aman-zulfiqar/escrow-solver/internal/models"

// SettlementRequest spends a batch of escrows. PoolRef is the first-hop
// pool shared by the batch; HopPoolRefs lists, per intent in batch order,
// every pool output its route crosses, so bridged intents carry two.
type SettlementRequest struct {
	IntentRefs      []models.OutRef   `json:"intent_refs"`
	ExpectedOutputs []uint64          `json:"expected_outputs"` // per intent, batch order
	PoolRef         models.OutRef     `json:"pool_ref"`
	HopPoolRefs     [][]models.OutRef `json:"hop_pool_refs"`
	SolverAddress   string            `json:"solver_address"`
	ExpectedSurplus int64             `json:"expected_surplus"`
}

// ReclaimRequest returns an expired escrow to its owner
type ReclaimRequest struct {
	EscrowRef     models.OutRef `json:"escrow_ref"`
	KeeperAddress string        `json:"keeper_address"`
	OwnerAddress  string        `json:"owner_address"`
}

// OrderExecuteRequest runs one interval of a recurring order
type OrderExecuteRequest struct {
	OrderRef      models.OutRef `json:"order_ref"`
	PoolRef       models.OutRef `json:"pool_ref"`
	SolverAddress string        `json:"solver_address"`
	Amount        uint64        `json:"amount"`
}

// OrderCancelRequest spends an order escrow back to its owner
type OrderCancelRequest struct {
	OrderRef      models.OutRef `json:"order_ref"`
	SenderAddress string        `json:"sender_address"`
}

// UnsignedTx is a built, unsigned transaction
type UnsignedTx struct {
	CborHex string `json:"cbor_hex"`
	TxHash  string `json:"tx_hash"`
	Fee     uint64 `json:"fee"`
	// ContinuingOutput is the index of the order's new escrow output, if any
	ContinuingOutput *uint32 `json:"continuing_output,omitempty"`
}
