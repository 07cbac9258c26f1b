package routing

import (
	"context"
	"sync"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/sirupsen/logrus"
)

// DefaultPoolTTL bounds pool snapshot staleness
const DefaultPoolTTL = 5 * time.Second

// PoolCache holds a TTL-bounded snapshot of active pools, refreshed lazily
type PoolCache struct {
	mu        sync.Mutex
	repo      storage.PoolRepository
	ttl       time.Duration
	now       func() time.Time
	logger    *logrus.Logger
	pools     []*models.Pool
	fetchedAt time.Time
}

func NewPoolCache(repo storage.PoolRepository, ttl time.Duration, logger *logrus.Logger) *PoolCache {
	if ttl <= 0 {
		ttl = DefaultPoolTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PoolCache{repo: repo, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock replaces the wall clock, for tests
func (c *PoolCache) WithClock(now func() time.Time) *PoolCache {
	c.now = now
	return c
}

// Snapshot returns the cached pools, refreshing them once the TTL has
// passed. A failed refresh keeps serving the previous snapshot.
func (c *PoolCache) Snapshot(ctx context.Context) []*models.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pools != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.pools
	}

	pools, err := c.repo.FindAllActive(ctx)
	if err != nil {
		c.logger.WithError(err).WithField("stale_pools", len(c.pools)).Warn("pool refresh failed, using stale snapshot")
		return c.pools
	}
	if pools == nil {
		pools = []*models.Pool{}
	}
	c.pools = pools
	c.fetchedAt = c.now()
	return c.pools
}

// Invalidate forces the next Snapshot to refresh
func (c *PoolCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// lookup finds a pool trading the unordered pair; the deepest one wins
// when several match
func lookup(pools []*models.Pool, x, y models.AssetClass) *models.Pool {
	var best *models.Pool
	for _, p := range pools {
		if !p.Matches(x, y) {
			continue
		}
		in, _ := p.Reserves(x)
		if best == nil {
			best = p
			continue
		}
		if bestIn, _ := best.Reserves(x); in > bestIn {
			best = p
		}
	}
	return best
}
