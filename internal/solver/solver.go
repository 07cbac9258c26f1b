// Package solver runs the batch-settlement cycle: collect live escrow
// intents, route them, group them per pool and settle each group.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/batching"
	"github.com/aman-zulfiqar/escrow-solver/internal/intents"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/routing"
	"github.com/sirupsen/logrus"
)

// CycleReport summarizes one solver cycle
type CycleReport struct {
	Collected int
	Leased    int
	Routed    int
	Batches   int
	Confirmed int
	Pending   int
	Failed    int
	// Observed is set when no signer is configured and nothing was submitted
	Observed bool
	Results  []*SettlementResult
}

type Solver struct {
	collector *intents.Collector
	optimizer *routing.Optimizer
	batcher   *batching.Builder
	settler   *Settler
	logger    *logrus.Logger
}

type Config struct {
	Collector *intents.Collector
	Optimizer *routing.Optimizer
	Batcher   *batching.Builder
	Settler   *Settler
	Logger    *logrus.Logger
}

func New(cfg Config) *Solver {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Batcher == nil {
		cfg.Batcher = batching.NewBuilder(batching.DefaultBudget, cfg.Logger)
	}
	s := &Solver{
		collector: cfg.Collector,
		optimizer: cfg.Optimizer,
		batcher:   cfg.Batcher,
		settler:   cfg.Settler,
		logger:    cfg.Logger,
	}
	if !s.settler.CanSettle() {
		s.logger.Warn("no signing key configured, solver runs in observation mode")
	}
	return s
}

// RunCycle performs one collect, route, batch and settle pass.
//
// Leases on escrow outputs are released when a batch fails before reaching
// the ledger, fails on the ledger, or confirms. A batch whose confirmation
// timed out keeps its leases until they expire so the pending spend is not
// batched again.
func (s *Solver) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("solver").Observe(time.Since(start).Seconds())
	}()

	var report CycleReport

	collected := s.collector.Collect(ctx)
	report.Collected = len(collected)
	metrics.IntentsCollected.Set(float64(len(collected)))
	if len(collected) == 0 {
		metrics.IntentsRouted.Set(0)
		return report
	}

	leased := s.lease(ctx, collected)
	report.Leased = len(leased)

	routes := s.optimizer.FindRoutes(ctx, leased)
	report.Routed = len(routes)
	metrics.IntentsRouted.Set(float64(len(routes)))

	var routed []*models.EscrowIntent
	var unrouted []models.OutRef
	for _, in := range leased {
		if _, ok := routes[in.Key()]; ok {
			routed = append(routed, in)
		} else {
			unrouted = append(unrouted, in.Ref)
		}
	}
	s.collector.ClearProcessing(ctx, unrouted)

	groups := s.batcher.GroupByPool(routed, routes)
	report.Batches = len(groups)

	if !s.settler.CanSettle() {
		report.Observed = true
		for _, g := range groups {
			s.collector.ClearProcessing(ctx, g.Refs())
		}
		s.logger.WithFields(logrus.Fields{
			"collected": report.Collected,
			"routed":    report.Routed,
			"batches":   report.Batches,
		}).Info("observation cycle complete")
		return report
	}

	for i, g := range groups {
		if ctx.Err() != nil {
			for _, rest := range groups[i:] {
				s.collector.ClearProcessing(context.WithoutCancel(ctx), rest.Refs())
			}
			break
		}
		s.settle(ctx, g, &report)
	}

	s.logger.WithFields(logrus.Fields{
		"collected": report.Collected,
		"routed":    report.Routed,
		"batches":   report.Batches,
		"confirmed": report.Confirmed,
		"pending":   report.Pending,
		"failed":    report.Failed,
	}).Info("solver cycle complete")
	return report
}

func (s *Solver) settle(ctx context.Context, g *models.BatchGroup, report *CycleReport) {
	metrics.BatchSize.Observe(float64(len(g.Intents)))
	log := s.logger.WithFields(logrus.Fields{"batch_id": g.ID, "pool_id": g.PoolID})

	res, err := s.settler.Settle(ctx, g)
	switch {
	case err != nil && (res == nil || errors.Is(err, ledger.ErrTxFailed)):
		// nothing is spending the escrows
		log.WithError(err).Warn("settlement failed")
		report.Failed++
		metrics.BatchesSubmitted.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.collector.ClearProcessing(ctx, g.Refs())
	case err != nil || !res.Confirmed:
		if err != nil {
			log.WithError(err).Warn("settlement outcome unknown")
		}
		report.Pending++
		metrics.BatchesSubmitted.WithLabelValues(metrics.OutcomePending).Inc()
	default:
		report.Confirmed++
		metrics.BatchesSubmitted.WithLabelValues(metrics.OutcomeConfirmed).Inc()
		s.collector.ClearProcessing(ctx, g.Refs())
	}
	if res != nil {
		report.Results = append(report.Results, res)
	}
}

// lease acquires processing leases and keeps only the intents won
func (s *Solver) lease(ctx context.Context, in []*models.EscrowIntent) []*models.EscrowIntent {
	refs := make([]models.OutRef, len(in))
	for i, it := range in {
		refs[i] = it.Ref
	}
	acquired := make(map[models.OutRef]struct{}, len(refs))
	for _, r := range s.collector.MarkProcessing(ctx, refs) {
		acquired[r] = struct{}{}
	}
	out := make([]*models.EscrowIntent, 0, len(acquired))
	for _, it := range in {
		if _, ok := acquired[it.Ref]; ok {
			out = append(out, it)
		}
	}
	return out
}
