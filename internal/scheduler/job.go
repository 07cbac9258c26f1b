package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/flags"
	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/sirupsen/logrus"
)

// TickFunc is one pass of a background job
type TickFunc func(ctx context.Context)

// Job guards a TickFunc so that at most one tick runs at a time. A tick
// fired while the previous one is still running is skipped, as is a tick
// while the job's pause switch is on.
type Job struct {
	name     string
	tick     TickFunc
	switches flags.Store
	timeout  time.Duration
	logger   *logrus.Logger
	running  atomic.Bool
}

type JobConfig struct {
	Switches flags.Store // optional
	Timeout  time.Duration
	Logger   *logrus.Logger
}

func NewJob(name string, tick TickFunc, cfg JobConfig) *Job {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Job{
		name:     name,
		tick:     tick,
		switches: cfg.Switches,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

func (j *Job) Name() string { return j.name }

// Running reports whether a tick is in progress
func (j *Job) Running() bool { return j.running.Load() }

// Run executes one tick and reports whether it ran
func (j *Job) Run(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		metrics.TicksSkipped.WithLabelValues(j.name, "busy").Inc()
		j.logger.WithField("job", j.name).Warn("previous tick still running, skipping")
		return false
	}
	defer j.running.Store(false)

	if j.switches != nil {
		paused, err := flags.IsPaused(ctx, j.switches, j.name)
		if err != nil {
			j.logger.WithError(err).WithField("job", j.name).Warn("failed to read pause switch, running anyway")
		}
		if paused {
			metrics.TicksSkipped.WithLabelValues(j.name, "paused").Inc()
			j.logger.WithField("job", j.name).Debug("job paused, skipping tick")
			return false
		}
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			j.logger.WithFields(logrus.Fields{"job": j.name, "panic": r}).Error("tick panicked")
		}
	}()
	j.tick(ctx)
	return true
}
