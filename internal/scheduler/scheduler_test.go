package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/flags"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestJob_SkipsOverlappingTick(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	job := NewJob(flags.JobSolver, func(ctx context.Context) {
		runs.Add(1)
		close(started)
		<-release
	}, JobConfig{Logger: quiet()})

	done := make(chan bool)
	go func() { done <- job.Run(context.Background()) }()
	<-started

	assert.True(t, job.Running())
	assert.False(t, job.Run(context.Background()), "overlapping tick must be skipped")

	close(release)
	assert.True(t, <-done)
	assert.False(t, job.Running())
	assert.Equal(t, int32(1), runs.Load())
}

func TestJob_PauseSwitch(t *testing.T) {
	switches := flags.NewMemoryStore()
	var runs atomic.Int32
	job := NewJob(flags.JobReclaim, func(ctx context.Context) { runs.Add(1) }, JobConfig{
		Switches: switches,
		Logger:   quiet(),
	})
	ctx := context.Background()

	assert.True(t, job.Run(ctx))

	_, err := switches.Set(ctx, flags.JobReclaim, true, "maintenance")
	require.NoError(t, err)
	assert.False(t, job.Run(ctx))

	_, err = switches.Set(ctx, flags.JobReclaim, false, "")
	require.NoError(t, err)
	assert.True(t, job.Run(ctx))
	assert.Equal(t, int32(2), runs.Load())
}

func TestJob_Timeout(t *testing.T) {
	var deadline time.Time
	job := NewJob(flags.JobInterval, func(ctx context.Context) {
		deadline, _ = ctx.Deadline()
	}, JobConfig{Timeout: time.Minute, Logger: quiet()})

	job.Run(context.Background())
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestJob_RecoversPanic(t *testing.T) {
	job := NewJob(flags.JobSolver, func(ctx context.Context) { panic("boom") }, JobConfig{Logger: quiet()})
	assert.NotPanics(t, func() { job.Run(context.Background()) })
	assert.False(t, job.Running())
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := New(quiet())
	var runs atomic.Int32
	var cancelled atomic.Bool

	job := NewJob(flags.JobSolver, func(ctx context.Context) {
		runs.Add(1)
		<-ctx.Done()
		cancelled.Store(true)
	}, JobConfig{Logger: quiet()})

	require.NoError(t, s.Every(10*time.Millisecond, job))
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	// ticks fire while the first one blocks and are skipped
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	s.Stop()
	assert.True(t, cancelled.Load(), "Stop waits for in-flight ticks")
	assert.Len(t, s.Jobs(), 1)
}

func TestScheduler_RejectsBadInterval(t *testing.T) {
	s := New(quiet())
	assert.Error(t, s.Every(0, NewJob("x", func(context.Context) {}, JobConfig{})))
}
