package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// Fanout records each event in every journal. One journal failing does not
// stop the others; the failures are returned joined.
type Fanout []Journal

func (f Fanout) RecordEvent(ctx context.Context, event *models.LedgerEvent) error {
	var errs []error
	for _, j := range f {
		if j == nil {
			continue
		}
		if err := j.RecordEvent(ctx, event); err != nil {
			name := fmt.Sprintf("%T", j)
			metrics.JournalErrors.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
