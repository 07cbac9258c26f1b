package flags

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	paused, err := IsPaused(ctx, s, JobSolver)
	require.NoError(t, err)
	assert.False(t, paused, "unset switch means running")

	_, err = s.Get(ctx, JobSolver)
	assert.ErrorIs(t, err, ErrNotFound)

	sw, err := s.Set(ctx, JobSolver, true, "pool migration")
	require.NoError(t, err)
	assert.Equal(t, JobSolver, sw.Job)
	assert.True(t, sw.Paused)
	assert.NotZero(t, sw.UpdatedAt)

	paused, err = IsPaused(ctx, s, JobSolver)
	require.NoError(t, err)
	assert.True(t, paused)

	got, err := s.Get(ctx, JobSolver)
	require.NoError(t, err)
	assert.Equal(t, "pool migration", got.Reason)

	_, err = s.Set(ctx, JobReclaim, false, "")
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, JobReclaim, all[0].Job)
	assert.Equal(t, JobSolver, all[1].Job)

	_, err = s.Set(ctx, JobSolver, false, "")
	require.NoError(t, err)
	paused, err = IsPaused(ctx, s, JobSolver)
	require.NoError(t, err)
	assert.False(t, paused)

	_, err = s.Set(ctx, "rm -rf", true, "")
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, err = s.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	s, err := NewRedisStore(setupTestRedis(t))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestRedisStore_SkipsCorruptEntries(t *testing.T) {
	client := setupTestRedis(t)
	s, err := NewRedisStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Set(ctx, JobInterval, true, "")
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, switchKey(JobSolver), "not-json", 0).Err())
	require.NoError(t, client.SAdd(ctx, indexKey, JobSolver, "bogus").Err())

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, JobInterval, all[0].Job)
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	assert.Error(t, err)
}
