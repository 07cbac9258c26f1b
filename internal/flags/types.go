// Package flags stores operator pause switches for the background jobs.
package flags

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("switch not found")
	ErrUnknownJob = errors.New("unknown job")
)

// Job names
const (
	JobSolver   = "solver"
	JobReclaim  = "reclaim"
	JobInterval = "interval"
)

// Jobs lists the switchable jobs
var Jobs = []string{JobSolver, JobReclaim, JobInterval}

// Switch is the pause state of one job
type Switch struct {
	Job       string    `json:"job"`
	Paused    bool      `json:"paused"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes pause switches
type Store interface {
	Set(ctx context.Context, job string, paused bool, reason string) (*Switch, error)
	Get(ctx context.Context, job string) (*Switch, error)
	List(ctx context.Context) ([]*Switch, error)
}

func ValidateJob(job string) error {
	for _, j := range Jobs {
		if j == job {
			return nil
		}
	}
	return ErrUnknownJob
}

// IsPaused reports a job's state; an unset switch means running
func IsPaused(ctx context.Context, s Store, job string) (bool, error) {
	sw, err := s.Get(ctx, job)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sw.Paused, nil
}
