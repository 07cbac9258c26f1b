package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/sirupsen/logrus"
)

const eventsTable = `
	CREATE TABLE IF NOT EXISTS ledger_events (
		tx_hash      String,
		kind         LowCardinality(String),
		pool_id      String,
		items        Array(String),
		input_total  UInt64,
		output_total UInt64,
		surplus      Int64,
		fee          UInt64,
		confirmed_at DateTime64(3)
	) ENGINE = ReplacingMergeTree
	ORDER BY (kind, tx_hash)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore is the analytical journal of confirmed ledger events
type ClickHouseStore struct {
	conn driver.Conn
}

var _ storage.Journal = (*ClickHouseStore)(nil)

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, eventsTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create ledger_events: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) RecordEvent(ctx context.Context, ev *models.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (
			tx_hash, kind, pool_id, items, input_total,
			output_total, surplus, fee, confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	items := ev.Items
	if items == nil {
		items = []string{}
	}

	err := c.conn.Exec(ctx, query,
		ev.TxHash,
		string(ev.Kind),
		ev.PoolID,
		items,
		ev.InputTotal,
		ev.OutputTotal,
		ev.Surplus,
		ev.Fee,
		ev.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
