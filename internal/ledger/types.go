package ledger

import "github.com/aman-zulfiqar/escrow-solver/internal/models"

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// SubmitResult is the ledger's answer to a submitted transaction
type SubmitResult struct {
	TxHash   string `json:"tx_hash"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// TxStatus is the confirmation state of a submitted transaction
type TxStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Failed        bool   `json:"failed"`
	Reason        string `json:"reason,omitempty"`
	Confirmations uint64 `json:"confirmations"`
}

type utxosResponse struct {
	Result []models.UTxO `json:"result"`
	Error  *RPCError     `json:"error"`
}

type datumResponse struct {
	Result *string   `json:"result"` // hex CBOR, null when unknown
	Error  *RPCError `json:"error"`
}

type tipResponse struct {
	Result models.ChainTip `json:"result"`
	Error  *RPCError       `json:"error"`
}

type submitResponse struct {
	Result SubmitResult `json:"result"`
	Error  *RPCError    `json:"error"`
}

type statusResponse struct {
	Result TxStatus  `json:"result"`
	Error  *RPCError `json:"error"`
}
