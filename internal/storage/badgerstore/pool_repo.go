package badgerstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/timshannon/badgerhold/v4"
)

type poolRepo struct {
	store *badgerhold.Store
}

func (r *poolRepo) FindAllActive(_ context.Context) ([]*models.Pool, error) {
	var found []models.Pool
	if err := r.store.Find(&found, badgerhold.Where("Active").Eq(true).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("find pools: %w", err)
	}
	out := make([]*models.Pool, 0, len(found))
	for i := range found {
		out = append(out, &found[i])
	}
	return out, nil
}

func (r *poolRepo) FindByPair(ctx context.Context, assetA, assetB models.AssetClass) (*models.Pool, error) {
	pools, err := r.FindAllActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if p.AssetA == assetA && p.AssetB == assetB {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *poolRepo) Save(_ context.Context, pool *models.Pool) error {
	if pool.ID == "" {
		return fmt.Errorf("pool id is required")
	}
	pool.UpdatedAt = time.Now().UTC()
	return withRetry(func() error {
		return r.store.Upsert(pool.ID, pool)
	})
}
