// Package batching groups routed intents into settlement batches that fit
// a single transaction's execution budget.
package batching

import (
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Budget holds per-transaction execution cost limits
type Budget struct {
	TotalMem     uint64
	TotalCPU     uint64
	PoolMem      uint64
	PoolCPU      uint64
	PerIntentMem uint64
	PerIntentCPU uint64
	HardCap      int
}

// DefaultBudget matches the ledger's per-transaction limits
var DefaultBudget = Budget{
	TotalMem:     14_000_000,
	TotalCPU:     10_000_000_000,
	PoolMem:      2_000_000,
	PoolCPU:      800_000_000,
	PerIntentMem: 1_200_000,
	PerIntentCPU: 400_000_000,
	HardCap:      15,
}

// MaxBatchSize is the number of intents one transaction can carry, at least 1
func (b Budget) MaxBatchSize() int {
	size := b.HardCap
	if n, ok := fit(b.TotalCPU, b.PoolCPU, b.PerIntentCPU); ok && n < size {
		size = n
	}
	if n, ok := fit(b.TotalMem, b.PoolMem, b.PerIntentMem); ok && n < size {
		size = n
	}
	if size < 1 {
		return 1
	}
	return size
}

func fit(total, fixed, per uint64) (int, bool) {
	if per == 0 {
		return 0, false
	}
	if fixed >= total {
		return 0, true
	}
	return int((total - fixed) / per), true
}

// Builder turns routed intents into batch groups
type Builder struct {
	budget Budget
	logger *logrus.Logger
}

func NewBuilder(budget Budget, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{budget: budget, logger: logger}
}

func (b *Builder) MaxBatchSize() int {
	return b.budget.MaxBatchSize()
}

// GroupByPool groups intents by the first-hop pool of their route. Groups
// appear in order of first use and keep collection order inside; oversized
// groups are split into consecutive sub-batches. Intents without a route
// in routes are dropped.
func (b *Builder) GroupByPool(intents []*models.EscrowIntent, routes map[string]*models.SwapRoute) []*models.BatchGroup {
	type bucket struct {
		pool    models.RouteHop
		intents []*models.EscrowIntent
		routes  []*models.SwapRoute
	}

	var order []string
	buckets := make(map[string]*bucket)
	for _, in := range intents {
		r, ok := routes[in.Key()]
		if !ok || r == nil || len(r.Hops) == 0 {
			continue
		}
		first := r.PrimaryPool()
		bk, ok := buckets[first.PoolID]
		if !ok {
			bk = &bucket{pool: first}
			buckets[first.PoolID] = bk
			order = append(order, first.PoolID)
		}
		bk.intents = append(bk.intents, in)
		bk.routes = append(bk.routes, r)
	}

	limit := b.MaxBatchSize()
	var groups []*models.BatchGroup
	for _, id := range order {
		bk := buckets[id]
		for start := 0; start < len(bk.intents); start += limit {
			end := start + limit
			if end > len(bk.intents) {
				end = len(bk.intents)
			}
			g := &models.BatchGroup{
				ID:      uuid.New(),
				PoolID:  bk.pool.PoolID,
				PoolRef: bk.pool.PoolRef,
				Intents: bk.intents[start:end:end],
				Routes:  bk.routes[start:end:end],
			}
			for i, in := range g.Intents {
				g.TotalInput += in.EffectiveInput()
				g.TotalOutput += g.Routes[i].TotalOutput
			}
			groups = append(groups, g)
		}
		if len(bk.intents) > limit {
			b.logger.WithFields(logrus.Fields{
				"pool_id": id,
				"intents": len(bk.intents),
				"max":     limit,
			}).Debug("split pool group into sub-batches")
		}
	}
	return groups
}

// CalculateSurplus is the sum of route outputs minus the sum of effective
// minimum outputs; negative when the routes fall short
func CalculateSurplus(g *models.BatchGroup) int64 {
	var surplus int64
	for i, in := range g.Intents {
		var out uint64
		if i < len(g.Routes) && g.Routes[i] != nil {
			out = g.Routes[i].TotalOutput
		}
		surplus += int64(out) - int64(in.EffectiveMinOutput())
	}
	return surplus
}
