package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	recentKey       = "events:recent"
	defaultMaxItems = 1000

	ChannelAll        = "events:all"
	channelKindPrefix = "events:kind:"
)

// RedisCache keeps a capped list of recent ledger events and publishes
// each one for live subscribers
type RedisCache struct {
	client   redis.UniversalClient
	maxItems int64
}

var (
	_ storage.Journal   = (*RedisCache)(nil)
	_ storage.EventFeed = (*RedisCache)(nil)
)

func NewRedisCache(client redis.UniversalClient) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisCache{client: client, maxItems: defaultMaxItems}, nil
}

// KindChannel is the pub/sub channel for one event kind
func KindChannel(kind models.EventKind) string {
	return channelKindPrefix + string(kind)
}

func (r *RedisCache) RecordEvent(ctx context.Context, event *models.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, r.maxItems-1)
	pipe.Publish(ctx, ChannelAll, data)
	pipe.Publish(ctx, KindChannel(event.Kind), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first
func (r *RedisCache) RecentEvents(ctx context.Context, limit int64) ([]*models.LedgerEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	vals, err := r.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent events: %w", err)
	}

	out := make([]*models.LedgerEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.LedgerEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
