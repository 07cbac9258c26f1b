package server

import "github.com/aman-zulfiqar/escrow-solver/internal/models"

// ErrorResponse is the JSON body of every error
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type JobStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Paused  bool   `json:"paused"`
}

type StatusResponse struct {
	Tip          *models.ChainTip `json:"tip,omitempty"`
	TipError     string           `json:"tip_error,omitempty"`
	Signing      bool             `json:"signing"`
	Pools        int              `json:"pools"`
	MaxBatchSize int              `json:"max_batch_size"`
	Jobs         []JobStatus      `json:"jobs"`
}

type JobUpdateRequest struct {
	Paused bool   `json:"paused"`
	Reason string `json:"reason"`
}

type QuoteResponse struct {
	InputAsset     string            `json:"input_asset"`
	OutputAsset    string            `json:"output_asset"`
	AmountIn       uint64            `json:"amount_in"`
	SlippageBps    uint16            `json:"slippage_bps"`
	MinReceived    uint64            `json:"min_received"`
	PriceImpactBps int64             `json:"price_impact_bps"`
	HopFeeBps      []uint64          `json:"hop_fee_bps"`
	Route          *models.SwapRoute `json:"route"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}
