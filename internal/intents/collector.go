package intents

import (
	"context"
	"errors"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/datum"
	"github.com/aman-zulfiqar/escrow-solver/internal/lease"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/sirupsen/logrus"
)

// Collector reads escrow outputs from the ledger and decodes them into intents
type Collector struct {
	ledger        ledger.Service
	leases        lease.Set
	escrowAddress string
	now           func() time.Time
	logger        *logrus.Logger
}

type CollectorConfig struct {
	Ledger        ledger.Service
	Leases        lease.Set
	EscrowAddress string
	Now           func() time.Time
	Logger        *logrus.Logger
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Leases == nil {
		cfg.Leases = lease.NewMemorySet(lease.DefaultTTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Collector{
		ledger:        cfg.Ledger,
		leases:        cfg.Leases,
		escrowAddress: cfg.EscrowAddress,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
}

// Collect returns live, unleased intents in ledger order. Ledger failures
// are logged and yield an empty result; undecodable outputs are skipped.
func (c *Collector) Collect(ctx context.Context) []*models.EscrowIntent {
	utxos, err := c.ledger.GetUtxosAt(ctx, c.escrowAddress)
	if err != nil {
		c.logger.WithError(err).WithField("address", c.escrowAddress).Warn("failed to query escrow outputs")
		return nil
	}

	now := c.now()
	out := make([]*models.EscrowIntent, 0, len(utxos))

	for _, u := range utxos {
		log := c.logger.WithField("ref", u.Ref.String())

		d, err := c.decode(ctx, u)
		if err != nil {
			if errors.Is(err, datum.ErrNoDatum) {
				log.Debug("escrow output has no datum, skipping")
			} else {
				log.WithError(err).Warn("skipping undecodable escrow output")
			}
			continue
		}

		intent := d.Intent(u.Ref)
		if intent.Expired(now) {
			log.WithField("deadline", intent.Deadline).Debug("intent expired, left for reclaim")
			continue
		}

		held, err := c.leases.IsHeld(ctx, u.Ref)
		if err != nil {
			// unknown lease state: skip rather than risk a double spend
			log.WithError(err).Warn("lease lookup failed, skipping intent")
			continue
		}
		if held {
			continue
		}

		out = append(out, intent)
	}

	c.logger.WithFields(logrus.Fields{
		"outputs": len(utxos),
		"intents": len(out),
	}).Debug("collected escrow intents")

	return out
}

func (c *Collector) decode(ctx context.Context, u models.UTxO) (datum.EscrowDatum, error) {
	if u.InlineDatum != "" {
		return datum.DecodeEscrowHex(u.InlineDatum)
	}
	if u.DatumHash == "" {
		return datum.EscrowDatum{}, datum.ErrNoDatum
	}
	raw, err := c.ledger.GetDatum(ctx, u.DatumHash)
	if err != nil {
		return datum.EscrowDatum{}, err
	}
	return datum.DecodeEscrow(raw)
}

// MarkProcessing leases refs for an in-flight batch and returns the refs
// actually acquired; refs held elsewhere are left out.
func (c *Collector) MarkProcessing(ctx context.Context, refs []models.OutRef) []models.OutRef {
	acquired := make([]models.OutRef, 0, len(refs))
	for _, ref := range refs {
		ok, err := c.leases.Acquire(ctx, ref)
		if err != nil {
			c.logger.WithError(err).WithField("ref", ref.String()).Warn("failed to acquire lease")
			continue
		}
		if ok {
			acquired = append(acquired, ref)
		}
	}
	return acquired
}

// ClearProcessing releases leases taken by MarkProcessing
func (c *Collector) ClearProcessing(ctx context.Context, refs []models.OutRef) {
	for _, ref := range refs {
		if err := c.leases.Release(ctx, ref); err != nil {
			c.logger.WithError(err).WithField("ref", ref.String()).Warn("failed to release lease")
		}
	}
}
