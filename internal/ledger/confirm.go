package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTxFailed means the ledger reports the transaction as failed
var ErrTxFailed = errors.New("transaction failed on ledger")

// StatusChecker reports the confirmation state of a transaction
type StatusChecker interface {
	TxStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// ConfirmOptions bounds a confirmation wait
type ConfirmOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	MaxInterval  time.Duration
	Logger       *logrus.Logger
}

// WaitForConfirmation polls until txHash is confirmed or opts.Timeout elapses.
//
// It returns (true, nil) once confirmed and (false, nil) on timeout; callers
// must treat a timeout as "not yet confirmed" and leave local state alone.
// A failed transaction returns ErrTxFailed; a cancelled ctx returns ctx.Err().
// Status lookup errors are logged and polling continues.
func WaitForConfirmation(ctx context.Context, checker StatusChecker, txHash string, opts ConfirmOptions) (bool, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 4 * opts.PollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	backoff := opts.PollInterval

	for {
		status, err := checker.TxStatus(ctx, txHash)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			opts.Logger.WithError(err).WithField("tx_hash", txHash).Debug("tx status lookup failed")
		case status.Failed:
			return false, fmt.Errorf("%w: %s", ErrTxFailed, status.Reason)
		case status.Confirmed:
			return true, nil
		}

		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return false, ctx.Err()
		case <-deadline.C:
			wait.Stop()
			opts.Logger.WithFields(logrus.Fields{
				"tx_hash": txHash,
				"timeout": opts.Timeout,
			}).Debug("confirmation wait timed out")
			return false, nil
		case <-wait.C:
			backoff *= 2
			if backoff > opts.MaxInterval {
				backoff = opts.MaxInterval
			}
		}
	}
}
