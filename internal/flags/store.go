package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "jobs:paused:index"
	valuePrefix = "jobs:paused:"
)

// RedisStore shares switches between solver instances
type RedisStore struct {
	client redis.Cmdable
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Set(ctx context.Context, job string, paused bool, reason string) (*Switch, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}

	sw := &Switch{Job: job, Paused: paused, Reason: reason, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(sw)
	if err != nil {
		return nil, fmt.Errorf("marshal switch: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, switchKey(job), b, 0)
	pipe.SAdd(ctx, indexKey, job)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("set switch: %w", err)
	}
	return sw, nil
}

func (s *RedisStore) Get(ctx context.Context, job string) (*Switch, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, switchKey(job)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get switch: %w", err)
	}

	var sw Switch
	if err := json.Unmarshal([]byte(val), &sw); err != nil {
		return nil, fmt.Errorf("unmarshal switch: %w", err)
	}
	return &sw, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Switch, error) {
	jobs, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list switch index: %w", err)
	}

	keys := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if ValidateJob(j) != nil {
			continue
		}
		keys = append(keys, switchKey(j))
	}
	if len(keys) == 0 {
		return []*Switch{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget switches: %w", err)
	}

	out := make([]*Switch, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var sw Switch
		if err := json.Unmarshal([]byte(str), &sw); err != nil {
			continue
		}
		out = append(out, &sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out, nil
}

func switchKey(job string) string {
	return valuePrefix + job
}
