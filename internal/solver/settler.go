package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/batching"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/aman-zulfiqar/escrow-solver/internal/txbuilder"
	"github.com/aman-zulfiqar/escrow-solver/internal/wallet"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultConfirmTimeout = 120 * time.Second

var ErrNoSigner = errors.New("no signing key configured")

// SettlementResult describes one submitted batch
type SettlementResult struct {
	GroupID   uuid.UUID
	TxHash    string
	Confirmed bool
	Surplus   int64
	Fee       uint64
	Settled   int // persisted intents flipped to FILLED
}

// Settler turns a batch group into a confirmed settlement transaction
type Settler struct {
	ledger         ledger.Service
	builder        txbuilder.Builder
	signer         wallet.Signer
	intents        storage.IntentRepository
	journal        storage.Fanout
	confirmTimeout time.Duration
	now            func() time.Time
	logger         *logrus.Logger
}

type SettlerConfig struct {
	Ledger         ledger.Service
	Builder        txbuilder.Builder
	Signer         wallet.Signer // nil disables settlement
	Intents        storage.IntentRepository
	Journals       []storage.Journal
	ConfirmTimeout time.Duration
	Now            func() time.Time
	Logger         *logrus.Logger
}

func NewSettler(cfg SettlerConfig) *Settler {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Settler{
		ledger:         cfg.Ledger,
		builder:        cfg.Builder,
		signer:         cfg.Signer,
		intents:        cfg.Intents,
		journal:        storage.Fanout(cfg.Journals),
		confirmTimeout: cfg.ConfirmTimeout,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// CanSettle reports whether a signing key is configured
func (s *Settler) CanSettle() bool {
	return s.signer != nil
}

// Settle builds, signs, submits and awaits the settlement of g. A returned
// result with Confirmed=false means the outcome is not yet known and no
// local state was changed. An error means nothing reached the ledger, or
// the ledger reported the transaction failed.
func (s *Settler) Settle(ctx context.Context, g *models.BatchGroup) (*SettlementResult, error) {
	if s.signer == nil {
		return nil, ErrNoSigner
	}
	if g == nil || len(g.Intents) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	surplus := batching.CalculateSurplus(g)
	log := s.logger.WithFields(logrus.Fields{
		"batch_id": g.ID,
		"pool_id":  g.PoolID,
		"intents":  len(g.Intents),
		"surplus":  surplus,
	})

	expected := make([]uint64, len(g.Routes))
	hops := make([][]models.OutRef, len(g.Routes))
	for i, r := range g.Routes {
		expected[i] = r.TotalOutput
		hops[i] = r.PoolRefs()
	}

	unsigned, err := s.builder.BuildSettlement(ctx, txbuilder.SettlementRequest{
		IntentRefs:      g.Refs(),
		ExpectedOutputs: expected,
		PoolRef:         g.PoolRef,
		HopPoolRefs:     hops,
		SolverAddress:   s.signer.Address(),
		ExpectedSurplus: surplus,
	})
	if err != nil {
		return nil, fmt.Errorf("build settlement: %w", err)
	}

	signed, txHash, err := s.signer.SignTx(unsigned.CborHex)
	if err != nil {
		return nil, fmt.Errorf("sign settlement: %w", err)
	}

	submitted, err := s.ledger.SubmitTx(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("submit settlement: %w", err)
	}
	if submitted.TxHash != "" {
		txHash = submitted.TxHash
	}

	result := &SettlementResult{GroupID: g.ID, TxHash: txHash, Surplus: surplus, Fee: unsigned.Fee}
	log = log.WithField("tx_hash", txHash)
	log.Info("settlement submitted")

	confirmed, err := s.ledger.AwaitConfirmation(ctx, txHash, s.confirmTimeout)
	if err != nil {
		return result, fmt.Errorf("await settlement %s: %w", txHash, err)
	}
	if !confirmed {
		log.Warn("settlement not confirmed before timeout, leaving intents untouched")
		return result, nil
	}
	result.Confirmed = true

	err = s.journal.RecordEvent(ctx, &models.LedgerEvent{
		TxHash:      txHash,
		Kind:        models.EventSettlement,
		PoolID:      g.PoolID,
		Items:       refStrings(g.Refs()),
		InputTotal:  g.TotalInput,
		OutputTotal: g.TotalOutput,
		Surplus:     surplus,
		Fee:         unsigned.Fee,
		ConfirmedAt: s.now(),
	})
	if err != nil {
		log.WithError(err).Warn("failed to journal settlement")
	}

	if s.intents != nil {
		n, err := s.intents.MarkSettled(ctx, g.Refs(), txHash)
		if err != nil {
			log.WithError(err).Error("failed to mark settled intents")
		}
		result.Settled = n
	}

	log.Info("settlement confirmed")
	return result, nil
}

func refStrings(refs []models.OutRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
