package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

var ErrNotFound = errors.New("record not found")

// IntentFilter selects intents; zero fields match everything
type IntentFilter struct {
	Statuses     []models.IntentStatus
	HasEscrowRef bool
	Limit        int
}

// OrderFilter selects orders; zero fields match everything
type OrderFilter struct {
	Types        []models.OrderType
	Statuses     []models.OrderStatus
	HasEscrowRef bool
	DueBeforeMs  int64 // NextExecutionAtMs <= DueBeforeMs when non-zero
	Limit        int
}

// IntentRepository persists escrow intent bookkeeping
type IntentRepository interface {
	FindMany(ctx context.Context, filter IntentFilter) ([]*models.Intent, error)
	Get(ctx context.Context, id string) (*models.Intent, error)
	Save(ctx context.Context, intent *models.Intent) error
	UpdateStatus(ctx context.Context, id string, status models.IntentStatus) error

	// MarkExpired flips open intents whose deadline is at or before nowMs
	// to EXPIRED and returns how many changed
	MarkExpired(ctx context.Context, nowMs int64) (int, error)

	// MarkSettled flips open intents backed by refs to FILLED
	MarkSettled(ctx context.Context, refs []models.OutRef, txHash string) (int, error)
}

// OrderRepository persists limit, stop-loss and interval orders
type OrderRepository interface {
	FindMany(ctx context.Context, filter OrderFilter) ([]*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	MarkExpired(ctx context.Context, nowMs int64) (int, error)
}

// PoolRepository persists the pool registry
type PoolRepository interface {
	FindAllActive(ctx context.Context) ([]*models.Pool, error)
	// FindByPair matches (assetA, assetB) in that order only
	FindByPair(ctx context.Context, assetA, assetB models.AssetClass) (*models.Pool, error)
	Save(ctx context.Context, pool *models.Pool) error
}

// Journal records confirmed ledger events (best-effort)
type Journal interface {
	RecordEvent(ctx context.Context, event *models.LedgerEvent) error
}

// EventFeed serves recently recorded events
type EventFeed interface {
	RecentEvents(ctx context.Context, limit int64) ([]*models.LedgerEvent, error)
	Ping(ctx context.Context) error
	io.Closer
}
