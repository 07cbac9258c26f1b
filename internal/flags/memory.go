package flags

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps switches in process
type MemoryStore struct {
	mu       sync.RWMutex
	switches map[string]Switch
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{switches: make(map[string]Switch)}
}

func (s *MemoryStore) Set(_ context.Context, job string, paused bool, reason string) (*Switch, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}
	sw := Switch{Job: job, Paused: paused, Reason: reason, UpdatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.switches[job] = sw
	s.mu.Unlock()
	return &sw, nil
}

func (s *MemoryStore) Get(_ context.Context, job string) (*Switch, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw, ok := s.switches[job]
	if !ok {
		return nil, ErrNotFound
	}
	return &sw, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Switch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Switch, 0, len(s.switches))
	for _, sw := range s.switches {
		sw := sw
		out = append(out, &sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out, nil
}
