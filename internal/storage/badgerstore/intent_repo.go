package badgerstore

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/timshannon/badgerhold/v4"
)

type intentRepo struct {
	store *badgerhold.Store
}

func (r *intentRepo) FindMany(_ context.Context, filter storage.IntentFilter) ([]*models.Intent, error) {
	query := badgerhold.Where(badgerhold.Key).Ne("")
	if len(filter.Statuses) > 0 {
		query = query.And("Status").In(toAny(filter.Statuses)...)
	}

	var found []models.Intent
	if err := r.store.Find(&found, query.SortBy("CreatedAtMs")); err != nil {
		return nil, fmt.Errorf("find intents: %w", err)
	}

	out := make([]*models.Intent, 0, len(found))
	for i := range found {
		if filter.HasEscrowRef && found[i].EscrowRef == nil {
			continue
		}
		out = append(out, &found[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *intentRepo) Get(_ context.Context, id string) (*models.Intent, error) {
	var intent models.Intent
	if err := r.store.Get(id, &intent); err != nil {
		return nil, notFound(err)
	}
	return &intent, nil
}

func (r *intentRepo) Save(_ context.Context, intent *models.Intent) error {
	if intent.ID == "" {
		return fmt.Errorf("intent id is required")
	}
	if intent.CreatedAtMs == 0 {
		intent.CreatedAtMs = nowMs()
	}
	intent.UpdatedAtMs = nowMs()
	return withRetry(func() error {
		return r.store.Upsert(intent.ID, intent)
	})
}

func (r *intentRepo) UpdateStatus(_ context.Context, id string, status models.IntentStatus) error {
	return withRetry(func() error {
		var intent models.Intent
		if err := r.store.Get(id, &intent); err != nil {
			return notFound(err)
		}
		intent.Status = status
		intent.UpdatedAtMs = nowMs()
		return r.store.Update(id, &intent)
	})
}

func (r *intentRepo) MarkExpired(_ context.Context, now int64) (int, error) {
	query := badgerhold.Where("Status").In(toAny(openIntentStatuses)...).
		And("DeadlineMs").Gt(int64(0)).
		And("DeadlineMs").Le(now)

	count := 0
	err := withRetry(func() error {
		count = 0
		return r.store.UpdateMatching(&models.Intent{}, query, func(record interface{}) error {
			intent, ok := record.(*models.Intent)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			intent.Status = models.IntentStatusExpired
			intent.UpdatedAtMs = now
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("mark intents expired: %w", err)
	}
	return count, nil
}

func (r *intentRepo) MarkSettled(_ context.Context, refs []models.OutRef, txHash string) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	wanted := make(map[models.OutRef]struct{}, len(refs))
	for _, ref := range refs {
		wanted[ref] = struct{}{}
	}

	query := badgerhold.Where("Status").In(toAny(openIntentStatuses)...)

	count := 0
	err := withRetry(func() error {
		count = 0
		return r.store.UpdateMatching(&models.Intent{}, query, func(record interface{}) error {
			intent, ok := record.(*models.Intent)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			if intent.EscrowRef == nil {
				return nil
			}
			if _, hit := wanted[*intent.EscrowRef]; !hit {
				return nil
			}
			intent.Status = models.IntentStatusFilled
			intent.SettledTxHash = txHash
			intent.UpdatedAtMs = nowMs()
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("mark intents settled: %w", err)
	}
	return count, nil
}

var openIntentStatuses = []models.IntentStatus{
	models.IntentStatusPending,
	models.IntentStatusPartiallyFilled,
}
