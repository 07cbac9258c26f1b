package badgerstore

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/timshannon/badgerhold/v4"
)

type orderRepo struct {
	store *badgerhold.Store
}

func (r *orderRepo) FindMany(_ context.Context, filter storage.OrderFilter) ([]*models.Order, error) {
	query := badgerhold.Where(badgerhold.Key).Ne("")
	if len(filter.Types) > 0 {
		query = query.And("Type").In(toAny(filter.Types)...)
	}
	if len(filter.Statuses) > 0 {
		query = query.And("Status").In(toAny(filter.Statuses)...)
	}
	if filter.DueBeforeMs != 0 {
		query = query.And("NextExecutionAtMs").Le(filter.DueBeforeMs)
	}

	var found []models.Order
	if err := r.store.Find(&found, query.SortBy("NextExecutionAtMs", "CreatedAtMs")); err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	out := make([]*models.Order, 0, len(found))
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

func (r *orderRepo) Get(_ context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.store.Get(id, &order); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *orderRepo) Save(_ context.Context, order *models.Order) error {
	if order.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if order.CreatedAtMs == 0 {
		order.CreatedAtMs = nowMs()
	}
	if order.UpdatedAtMs == 0 {
		order.UpdatedAtMs = nowMs()
	}
	return withRetry(func() error {
		return r.store.Upsert(order.ID, order)
	})
}

func (r *orderRepo) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	return withRetry(func() error {
		var order models.Order
		if err := r.store.Get(id, &order); err != nil {
			return notFound(err)
		}
		order.Status = status
		order.UpdatedAtMs = nowMs()
		return r.store.Update(id, &order)
	})
}

func (r *orderRepo) MarkExpired(_ context.Context, now int64) (int, error) {
	query := badgerhold.Where("Status").In(
		toAny([]models.OrderStatus{models.OrderStatusActive, models.OrderStatusPartiallyFilled})...,
	).And("DeadlineMs").Gt(int64(0)).And("DeadlineMs").Le(now)

	count := 0
	err := withRetry(func() error {
		count = 0
		return r.store.UpdateMatching(&models.Order{}, query, func(record interface{}) error {
			order, ok := record.(*models.Order)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			order.Status = models.OrderStatusExpired
			order.UpdatedAtMs = now
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("mark orders expired: %w", err)
	}
	return count, nil
}
