package models

type OrderType string

const (
	OrderTypeLimit    OrderType = "LIMIT"
	OrderTypeStopLoss OrderType = "STOP_LOSS"
	OrderTypeInterval OrderType = "INTERVAL"
)

type OrderStatus string

const (
	OrderStatusActive          OrderStatus = "ACTIVE"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Open reports whether the order can still execute or expire
func (s OrderStatus) Open() bool {
	return s == OrderStatusActive || s == OrderStatusPartiallyFilled
}

// Order is a persisted limit, stop-loss or recurring order
type Order struct {
	ID           string      `json:"id"`
	Type         OrderType   `json:"type"`
	Status       OrderStatus `json:"status"`
	OwnerAddress string      `json:"owner_address"`
	InputAsset   AssetClass  `json:"input_asset"`
	OutputAsset  AssetClass  `json:"output_asset"`
	EscrowRef    *OutRef     `json:"escrow_ref,omitempty"`

	TotalBudget       uint64 `json:"total_budget"`
	RemainingBudget   uint64 `json:"remaining_budget"`
	AmountPerInterval uint64 `json:"amount_per_interval"`
	IntervalMs        int64  `json:"interval_ms"`
	ExecutedIntervals uint64 `json:"executed_intervals"`
	NextExecutionAtMs int64  `json:"next_execution_at_ms"`

	DeadlineMs  int64  `json:"deadline_ms"`
	LastTxHash  string `json:"last_tx_hash,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

// Ripe reports whether an interval order is due at nowMs
func (o *Order) Ripe(nowMs int64) bool {
	return o.Type == OrderTypeInterval && o.Status.Open() && o.NextExecutionAtMs <= nowMs
}

// NextIntervalAmount is the input spent by the next execution
func (o *Order) NextIntervalAmount() uint64 {
	if o.AmountPerInterval < o.RemainingBudget {
		return o.AmountPerInterval
	}
	return o.RemainingBudget
}

// ApplyExecution records one confirmed interval execution.
// continuing is the order's new escrow output, nil when none remains.
func (o *Order) ApplyExecution(txHash string, continuing *OutRef, nowMs int64) {
	o.RemainingBudget -= o.NextIntervalAmount()
	o.ExecutedIntervals++
	o.NextExecutionAtMs += o.IntervalMs
	o.LastTxHash = txHash
	o.UpdatedAtMs = nowMs

	if o.RemainingBudget == 0 {
		o.Status = OrderStatusFilled
		o.EscrowRef = nil
		return
	}
	o.Status = OrderStatusPartiallyFilled
	if continuing != nil {
		o.EscrowRef = continuing
	}
}
