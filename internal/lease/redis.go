package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lease:utxo:"

// only the holder that set a lease may delete it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSet is a Set shared between solver instances through Redis
type RedisSet struct {
	client redis.Cmdable
	ttl    time.Duration
	owner  string
}

func NewRedisSet(client redis.Cmdable, ttl time.Duration) (*RedisSet, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSet{client: client, ttl: ttl, owner: uuid.NewString()}, nil
}

// Owner identifies this instance's leases
func (s *RedisSet) Owner() string { return s.owner }

func (s *RedisSet) Acquire(ctx context.Context, ref models.OutRef) (bool, error) {
	ok, err := s.client.SetNX(ctx, leaseKey(ref), s.owner, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (s *RedisSet) Release(ctx context.Context, ref models.OutRef) error {
	if err := releaseScript.Run(ctx, s.client, []string{leaseKey(ref)}, s.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (s *RedisSet) IsHeld(ctx context.Context, ref models.OutRef) (bool, error) {
	n, err := s.client.Exists(ctx, leaseKey(ref)).Result()
	if err != nil {
		return false, fmt.Errorf("check lease: %w", err)
	}
	return n > 0, nil
}

func leaseKey(ref models.OutRef) string {
	return keyPrefix + ref.String()
}
