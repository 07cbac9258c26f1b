package models

import "time"

type EventKind string

const (
	EventSettlement EventKind = "settlement"
	EventReclaim    EventKind = "reclaim"
	EventCancel     EventKind = "cancel"
	EventInterval   EventKind = "interval"
)

// LedgerEvent is a confirmed transaction submitted by this process
type LedgerEvent struct {
	TxHash      string    `json:"tx_hash"`
	Kind        EventKind `json:"kind"`
	PoolID      string    `json:"pool_id,omitempty"`
	Items       []string  `json:"items"`
	InputTotal  uint64    `json:"input_total"`
	OutputTotal uint64    `json:"output_total"`
	Surplus     int64     `json:"surplus"`
	Fee         uint64    `json:"fee"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
