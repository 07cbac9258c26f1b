// Package scheduler runs the solver and keeper jobs on fixed intervals.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

type Scheduler struct {
	cron   *gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	jobs    []*Job
}

func New(logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Every schedules job at a fixed interval, first run immediately on Start
func (s *Scheduler) Every(interval time.Duration, job *Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	if _, err := s.cron.Every(interval).Do(s.wrap(job)); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.jobs = append(s.jobs, job)
	s.logger.WithFields(logrus.Fields{"job": job.Name(), "interval": interval}).Info("job scheduled")
	return nil
}

func (s *Scheduler) wrap(job *Job) func() {
	return func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		job.Run(s.ctx)
	}
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop cancels in-flight ticks and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
}

// Jobs returns the scheduled jobs
func (s *Scheduler) Jobs() []*Job {
	return s.jobs
}
