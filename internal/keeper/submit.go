// Package keeper holds the maintenance jobs that act on expired escrows
// and recurring orders. Local state only changes after the ledger confirms
// the keeper's transaction.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/aman-zulfiqar/escrow-solver/internal/txbuilder"
	"github.com/aman-zulfiqar/escrow-solver/internal/wallet"
)

const DefaultConfirmTimeout = 120 * time.Second

// submitter signs, submits and awaits keeper transactions
type submitter struct {
	ledger  ledger.Service
	signer  wallet.Signer
	timeout time.Duration
}

// submit returns the ledger tx hash and whether it confirmed in time
func (s submitter) submit(ctx context.Context, unsigned *txbuilder.UnsignedTx) (string, bool, error) {
	signed, txHash, err := s.signer.SignTx(unsigned.CborHex)
	if err != nil {
		return "", false, fmt.Errorf("sign: %w", err)
	}
	res, err := s.ledger.SubmitTx(ctx, signed)
	if err != nil {
		return "", false, fmt.Errorf("submit: %w", err)
	}
	if res.TxHash != "" {
		txHash = res.TxHash
	}
	confirmed, err := s.ledger.AwaitConfirmation(ctx, txHash, s.timeout)
	if err != nil {
		return txHash, false, fmt.Errorf("await %s: %w", txHash, err)
	}
	return txHash, confirmed, nil
}

// outcome maps a submit result to a metrics label
func outcome(confirmed bool, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeFailed
	case confirmed:
		return metrics.OutcomeConfirmed
	default:
		return metrics.OutcomePending
	}
}
