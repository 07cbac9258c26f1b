package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/aman-zulfiqar/escrow-solver/internal/txbuilder"
	"github.com/aman-zulfiqar/escrow-solver/internal/wallet"
	"github.com/sirupsen/logrus"
)

const DefaultBatchLimit = 10

// IntervalReport summarizes one interval executor tick
type IntervalReport struct {
	Ripe     int
	Executed int
	Pending  int
	Failed   int
	Skipped  int
	Deferred int // executable but over the batch limit
}

// IntervalExecutor runs due intervals of recurring orders
type IntervalExecutor struct {
	builder       txbuilder.Builder
	submitter     submitter
	orders        storage.OrderRepository
	pools         storage.PoolRepository
	journal       storage.Fanout
	solverAddress string
	batchLimit    int
	now           func() time.Time
	logger        *logrus.Logger
}

type IntervalConfig struct {
	Ledger         ledger.Service
	Builder        txbuilder.Builder
	Signer         wallet.Signer
	Orders         storage.OrderRepository
	Pools          storage.PoolRepository
	Journals       []storage.Journal
	SolverAddress  string // defaults to the signer's address
	BatchLimit     int
	ConfirmTimeout time.Duration
	Now            func() time.Time
	Logger         *logrus.Logger
}

func NewIntervalExecutor(cfg IntervalConfig) *IntervalExecutor {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.SolverAddress == "" && cfg.Signer != nil {
		cfg.SolverAddress = cfg.Signer.Address()
	}
	if cfg.Signer == nil {
		cfg.Logger.Warn("interval executor has no signing key, orders will not execute")
	}
	return &IntervalExecutor{
		builder:       cfg.Builder,
		submitter:     submitter{ledger: cfg.Ledger, signer: cfg.Signer, timeout: cfg.ConfirmTimeout},
		orders:        cfg.Orders,
		pools:         cfg.Pools,
		journal:       storage.Fanout(cfg.Journals),
		solverAddress: cfg.SolverAddress,
		batchLimit:    cfg.BatchLimit,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
}

// Tick executes up to BatchLimit ripe interval orders. Orders that cannot
// execute are skipped without using up the limit. Order progress is saved
// only once the execution transaction confirms.
func (e *IntervalExecutor) Tick(ctx context.Context) IntervalReport {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("interval").Observe(time.Since(start).Seconds())
	}()

	var report IntervalReport
	nowMs := e.now().UnixMilli()

	ripe, err := e.ripeOrders(ctx, nowMs)
	if err != nil {
		e.logger.WithError(err).Error("failed to list ripe interval orders")
		return report
	}
	report.Ripe = len(ripe)
	if len(ripe) == 0 || e.submitter.signer == nil {
		return report
	}

	attempted := 0
	for _, o := range ripe {
		if ctx.Err() != nil {
			break
		}
		plan, ok := e.plan(ctx, o)
		if !ok {
			report.Skipped++
			continue
		}
		if attempted == e.batchLimit {
			report.Deferred++
			continue
		}
		attempted++
		e.execute(ctx, plan, nowMs, &report)
	}

	e.logger.WithFields(logrus.Fields{
		"ripe":     report.Ripe,
		"executed": report.Executed,
		"pending":  report.Pending,
		"failed":   report.Failed,
		"skipped":  report.Skipped,
		"deferred": report.Deferred,
	}).Info("interval tick complete")
	return report
}

func (e *IntervalExecutor) ripeOrders(ctx context.Context, nowMs int64) ([]*models.Order, error) {
	found, err := e.orders.FindMany(ctx, storage.OrderFilter{
		Types:       []models.OrderType{models.OrderTypeInterval},
		Statuses:    []models.OrderStatus{models.OrderStatusActive, models.OrderStatusPartiallyFilled},
		DueBeforeMs: nowMs,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(found))
	out := make([]*models.Order, 0, len(found))
	for _, o := range found {
		if _, dup := seen[o.ID]; dup || !o.Ripe(nowMs) {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out, nil
}

// execution is a ripe order with everything needed to build its transaction
type execution struct {
	order  *models.Order
	pool   *models.Pool
	amount uint64
	log    *logrus.Entry
}

// plan resolves what an execution needs; false means the order is skipped
func (e *IntervalExecutor) plan(ctx context.Context, o *models.Order) (*execution, bool) {
	log := e.logger.WithField("order_id", o.ID)

	if o.EscrowRef == nil {
		log.Warn("interval order has no escrow output, skipping")
		return nil, false
	}
	log = log.WithField("ref", o.EscrowRef.String())

	amount := o.NextIntervalAmount()
	if amount == 0 {
		log.Warn("interval order has no remaining budget, skipping")
		return nil, false
	}

	pool, err := e.findPool(ctx, o.InputAsset, o.OutputAsset)
	if err != nil {
		log.WithError(err).Warn("no pool for interval order, skipping")
		return nil, false
	}

	return &execution{order: o, pool: pool, amount: amount, log: log.WithField("pool_id", pool.ID)}, true
}

func (e *IntervalExecutor) execute(ctx context.Context, x *execution, nowMs int64, report *IntervalReport) {
	o, pool, amount, log := x.order, x.pool, x.amount, x.log

	unsigned, err := e.builder.BuildOrderExecution(ctx, txbuilder.OrderExecuteRequest{
		OrderRef:      *o.EscrowRef,
		PoolRef:       pool.Ref,
		SolverAddress: e.solverAddress,
		Amount:        amount,
	})
	var (
		txHash    string
		confirmed bool
	)
	if err != nil {
		err = fmt.Errorf("build: %w", err)
	} else {
		txHash, confirmed, err = e.submitter.submit(ctx, unsigned)
	}
	metrics.KeeperActions.WithLabelValues(string(models.EventInterval), outcome(confirmed, err)).Inc()

	if txHash != "" {
		log = log.WithField("tx_hash", txHash)
	}
	switch {
	case err != nil:
		report.Failed++
		log.WithError(err).Warn("interval execution failed, retrying next tick")
		return
	case !confirmed:
		report.Pending++
		log.Warn("interval execution not confirmed, retrying next tick")
		return
	}

	var continuing *models.OutRef
	if unsigned.ContinuingOutput != nil {
		continuing = &models.OutRef{TxHash: txHash, Index: *unsigned.ContinuingOutput}
	}
	o.ApplyExecution(txHash, continuing, nowMs)
	if err := e.orders.Save(ctx, o); err != nil {
		log.WithError(err).Error("execution confirmed but order save failed")
		return
	}
	report.Executed++

	if err := e.journal.RecordEvent(ctx, &models.LedgerEvent{
		TxHash:      txHash,
		Kind:        models.EventInterval,
		PoolID:      pool.ID,
		Items:       []string{o.ID},
		InputTotal:  amount,
		Fee:         unsigned.Fee,
		ConfirmedAt: e.now(),
	}); err != nil {
		log.WithError(err).Warn("failed to journal interval execution")
	}
	log.WithFields(logrus.Fields{
		"executed_intervals": o.ExecutedIntervals,
		"remaining_budget":   o.RemainingBudget,
		"status":             o.Status,
	}).Info("interval executed")
}

// findPool tries the pair in both orientations
func (e *IntervalExecutor) findPool(ctx context.Context, in, out models.AssetClass) (*models.Pool, error) {
	pool, err := e.pools.FindByPair(ctx, in, out)
	if err == nil {
		return pool, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return e.pools.FindByPair(ctx, out, in)
}
