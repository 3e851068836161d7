package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/config"
	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// testCache connects to REDIS_TEST_URL or skips.
func testCache(t *testing.T) *Cache {
	t.Helper()

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	c, err := NewCache(context.Background(), config.RedisConfig{URL: url, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testBatch() shared.BatchID {
	return shared.BatchID("test-" + uuid.NewString())
}

func TestOptions(t *testing.T) {
	opts, err := Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = Options(config.RedisConfig{URL: "redis://:secret@example:6379/3", Host: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Options(config.RedisConfig{URL: "http://nope"})
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "matcher:lock:2026-spring", RunLockKey("2026-spring"))
	assert.Equal(t, "matcher:stats:2026-spring", RunStatsKey("2026-spring"))
}

func TestRunLock(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	lock := NewRunLock(c, time.Minute)
	batch := testBatch()

	token, err := lock.Acquire(ctx, batch)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = lock.Acquire(ctx, batch)
	assert.ErrorIs(t, err, shared.ErrRunInProgress)

	// A stranger cannot release it.
	require.NoError(t, lock.Release(ctx, batch, "someone-else"))
	_, err = lock.Acquire(ctx, batch)
	assert.ErrorIs(t, err, shared.ErrRunInProgress)

	require.NoError(t, lock.Release(ctx, batch, token))
	again, err := lock.Acquire(ctx, batch)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx, batch, again))
}

func TestStatsCache(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	cache := NewStatsCache(c, time.Minute)
	batch := testBatch()
	t.Cleanup(func() { _ = c.Delete(ctx, RunStatsKey(batch.String())) })

	_, err := cache.Get(ctx, batch)
	assert.ErrorIs(t, err, shared.ErrRunNotFound)

	stats := matching.Stats{
		RunID:             "run-1",
		BatchID:           batch.String(),
		EligibleUsers:     12,
		IneligibleReasons: map[matching.IneligibleReason]int{matching.ReasonMissingGender: 1},
		FinalMatches:      5,
		AverageScore:      71.5,
	}
	require.NoError(t, cache.Put(ctx, stats))

	got, err := cache.Get(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, stats.RunID, got.RunID)
	assert.Equal(t, stats.IneligibleReasons, got.IneligibleReasons)
	assert.InDelta(t, 71.5, got.AverageScore, 1e-9)

	assert.ErrorIs(t, cache.Put(ctx, matching.Stats{}), shared.ErrEmptyBatch)
}
