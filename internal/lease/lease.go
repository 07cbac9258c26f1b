// Package lease tracks which escrow outputs are claimed by an in-flight batch.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// DefaultTTL bounds how long a lease survives an unreleased claim
const DefaultTTL = 10 * time.Minute

// Set is a set of leased output references
type Set interface {
	// Acquire claims ref; false means another holder already has it
	Acquire(ctx context.Context, ref models.OutRef) (bool, error)
	Release(ctx context.Context, ref models.OutRef) error
	IsHeld(ctx context.Context, ref models.OutRef) (bool, error)
}

// MemorySet is a process-local Set with per-lease expiry
type MemorySet struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[models.OutRef]time.Time
}

func NewMemorySet(ttl time.Duration) *MemorySet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySet{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[models.OutRef]time.Time),
	}
}

// WithClock replaces the wall clock, for tests
func (s *MemorySet) WithClock(now func() time.Time) *MemorySet {
	s.now = now
	return s
}

func (s *MemorySet) Acquire(_ context.Context, ref models.OutRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.leases[ref]; ok && now.Before(exp) {
		return false, nil
	}
	s.leases[ref] = now.Add(s.ttl)
	return true, nil
}

func (s *MemorySet) Release(_ context.Context, ref models.OutRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, ref)
	return nil
}

func (s *MemorySet) IsHeld(_ context.Context, ref models.OutRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.leases[ref]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.leases, ref)
		return false, nil
	}
	return true, nil
}

// Len returns the number of unexpired leases
func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for ref, exp := range s.leases {
		if now.Before(exp) {
			n++
		} else {
			delete(s.leases, ref)
		}
	}
	return n
}
