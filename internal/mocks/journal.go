package mocks

import (
	"context"
	"sync"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// Journal keeps recorded events in memory
type Journal struct {
	mu     sync.Mutex
	Err    error
	Events []*models.LedgerEvent
}

func (j *Journal) RecordEvent(_ context.Context, event *models.LedgerEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return j.Err
	}
	j.Events = append(j.Events, event)
	return nil
}
