package keeper

import (
	"context"
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

// ReclaimReport summarizes one reclaim tick
type ReclaimReport struct {
	IntentsExpired int
	OrdersExpired  int
	Reclaimed      int
	Cancelled      int
	Pending        int
	Failed         int
}

// Reclaimer expires overdue intents and orders, then returns their escrowed
// funds to the owners
type Reclaimer struct {
	builder       txbuilder.Builder
	submitter     submitter
	intents       storage.IntentRepository
	orders        storage.OrderRepository
	journal       storage.Fanout
	keeperAddress string
	now           func() time.Time
	logger        *logrus.Logger
}

type ReclaimerConfig struct {
	Ledger         ledger.Service
	Builder        txbuilder.Builder
	Signer         wallet.Signer // nil limits the keeper to expiry marking
	Intents        storage.IntentRepository
	Orders         storage.OrderRepository
	Journals       []storage.Journal
	KeeperAddress  string // defaults to the signer's address
	ConfirmTimeout time.Duration
	Now            func() time.Time
	Logger         *logrus.Logger
}

func NewReclaimer(cfg ReclaimerConfig) *Reclaimer {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.KeeperAddress == "" && cfg.Signer != nil {
		cfg.KeeperAddress = cfg.Signer.Address()
	}
	if cfg.Signer == nil {
		cfg.Logger.Warn("reclaim keeper has no signing key, only marking expired items")
	}
	return &Reclaimer{
		builder:       cfg.Builder,
		submitter:     submitter{ledger: cfg.Ledger, signer: cfg.Signer, timeout: cfg.ConfirmTimeout},
		intents:       cfg.Intents,
		orders:        cfg.Orders,
		journal:       storage.Fanout(cfg.Journals),
		keeperAddress: cfg.KeeperAddress,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
}

// Tick marks overdue items expired and reclaims each expired item that
// still has an escrow output. An item whose transaction is not confirmed
// stays EXPIRED and is retried on the next tick.
func (r *Reclaimer) Tick(ctx context.Context) ReclaimReport {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("reclaim").Observe(time.Since(start).Seconds())
	}()

	var report ReclaimReport
	nowMs := r.now().UnixMilli()

	n, err := r.intents.MarkExpired(ctx, nowMs)
	if err != nil {
		r.logger.WithError(err).Error("failed to mark expired intents")
	}
	report.IntentsExpired = n
	metrics.ItemsExpired.WithLabelValues("intent").Add(float64(n))

	n, err = r.orders.MarkExpired(ctx, nowMs)
	if err != nil {
		r.logger.WithError(err).Error("failed to mark expired orders")
	}
	report.OrdersExpired = n
	metrics.ItemsExpired.WithLabelValues("order").Add(float64(n))

	if r.submitter.signer == nil {
		return report
	}

	intents, err := r.intents.FindMany(ctx, storage.IntentFilter{
		Statuses:     []models.IntentStatus{models.IntentStatusExpired},
		HasEscrowRef: true,
	})
	if err != nil {
		r.logger.WithError(err).Error("failed to list expired intents")
	}
	for _, in := range intents {
		if ctx.Err() != nil {
			return report
		}
		r.reclaimIntent(ctx, in, &report)
	}

	orders, err := r.orders.FindMany(ctx, storage.OrderFilter{
		Statuses:     []models.OrderStatus{models.OrderStatusExpired},
		HasEscrowRef: true,
	})
	if err != nil {
		r.logger.WithError(err).Error("failed to list expired orders")
	}
	for _, o := range orders {
		if ctx.Err() != nil {
			return report
		}
		r.cancelOrder(ctx, o, &report)
	}

	if report.Reclaimed+report.Cancelled+report.Pending+report.Failed > 0 {
		r.logger.WithFields(logrus.Fields{
			"reclaimed": report.Reclaimed,
			"cancelled": report.Cancelled,
			"pending":   report.Pending,
			"failed":    report.Failed,
		}).Info("reclaim tick complete")
	}
	return report
}

func (r *Reclaimer) reclaimIntent(ctx context.Context, in *models.Intent, report *ReclaimReport) {
	log := r.logger.WithFields(logrus.Fields{"intent_id": in.ID, "ref": in.EscrowRef.String()})

	txHash, confirmed, err := r.run(ctx, func() (*txbuilder.UnsignedTx, error) {
		return r.builder.BuildReclaim(ctx, txbuilder.ReclaimRequest{
			EscrowRef:     *in.EscrowRef,
			KeeperAddress: r.keeperAddress,
			OwnerAddress:  in.OwnerAddress,
		})
	})
	metrics.KeeperActions.WithLabelValues(string(models.EventReclaim), outcome(confirmed, err)).Inc()
	if !r.settled(log, txHash, confirmed, err, report) {
		return
	}

	if err := r.intents.UpdateStatus(ctx, in.ID, models.IntentStatusReclaimed); err != nil {
		log.WithError(err).Error("reclaim confirmed but status update failed")
		return
	}
	report.Reclaimed++
	r.record(ctx, log, models.EventReclaim, txHash, *in.EscrowRef, in.InputAmount)
	log.WithField("tx_hash", txHash).Info("intent reclaimed")
}

func (r *Reclaimer) cancelOrder(ctx context.Context, o *models.Order, report *ReclaimReport) {
	log := r.logger.WithFields(logrus.Fields{"order_id": o.ID, "ref": o.EscrowRef.String()})

	txHash, confirmed, err := r.run(ctx, func() (*txbuilder.UnsignedTx, error) {
		return r.builder.BuildOrderCancel(ctx, txbuilder.OrderCancelRequest{
			OrderRef:      *o.EscrowRef,
			SenderAddress: o.OwnerAddress,
		})
	})
	metrics.KeeperActions.WithLabelValues(string(models.EventCancel), outcome(confirmed, err)).Inc()
	if !r.settled(log, txHash, confirmed, err, report) {
		return
	}

	if err := r.orders.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled); err != nil {
		log.WithError(err).Error("cancel confirmed but status update failed")
		return
	}
	report.Cancelled++
	r.record(ctx, log, models.EventCancel, txHash, *o.EscrowRef, o.RemainingBudget)
	log.WithField("tx_hash", txHash).Info("order cancelled")
}

func (r *Reclaimer) run(ctx context.Context, build func() (*txbuilder.UnsignedTx, error)) (string, bool, error) {
	unsigned, err := build()
	if err != nil {
		return "", false, fmt.Errorf("build: %w", err)
	}
	return r.submitter.submit(ctx, unsigned)
}

// settled logs a failed or unconfirmed attempt and reports whether the
// item may be committed
func (r *Reclaimer) settled(log *logrus.Entry, txHash string, confirmed bool, err error, report *ReclaimReport) bool {
	if txHash != "" {
		log = log.WithField("tx_hash", txHash)
	}
	switch {
	case err != nil:
		report.Failed++
		log.WithError(err).Warn("keeper transaction failed, retrying next tick")
		return false
	case !confirmed:
		report.Pending++
		log.Warn("keeper transaction not confirmed, retrying next tick")
		return false
	}
	return true
}

func (r *Reclaimer) record(ctx context.Context, log *logrus.Entry, kind models.EventKind, txHash string, ref models.OutRef, amount uint64) {
	err := r.journal.RecordEvent(ctx, &models.LedgerEvent{
		TxHash:      txHash,
		Kind:        kind,
		Items:       []string{ref.String()},
		InputTotal:  amount,
		ConfirmedAt: r.now(),
	})
	if err != nil {
		log.WithError(err).Warn("failed to journal keeper event")
	}
}
