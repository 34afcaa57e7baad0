package redis_repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/slanderwatch/slanderwatch/models"
)

func newTestCache(t *testing.T) (*redisRunCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisRunCache(client), mr
}

func TestRunStatusRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetRunStatus(ctx, "r1", models.RunStatusRunning, time.Minute))
	status, err := cache.GetRunStatus(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusRunning, status)

	_, err = cache.GetRunStatus(ctx, "missing")
	require.ErrorIs(t, err, models.ErrRunNotFound)
}

func TestRunStatusExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetRunStatus(ctx, "r1", models.RunStatusSucceeded, time.Second))
	mr.FastForward(2 * time.Second)

	_, err := cache.GetRunStatus(ctx, "r1")
	require.ErrorIs(t, err, models.ErrRunNotFound)
}

func TestCachedReportRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	report := models.Report{RunID: "r1", Target: "jane doe", OverallRisk: 0.42}
	require.NoError(t, cache.CacheReport(ctx, report, time.Minute))

	got, ok, err := cache.GetCachedReport(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, report.Target, got.Target)
	require.Equal(t, report.OverallRisk, got.OverallRisk)

	_, ok, err = cache.GetCachedReport(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLock(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.AcquireLock(ctx, "watch:w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cache.AcquireLock(ctx, "watch:w1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second acquire should fail while the lock is held")

	require.NoError(t, cache.ReleaseLock(ctx, "watch:w1"))
	ok, err = cache.AcquireLock(ctx, "watch:w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = cache.AcquireLock(ctx, "watch:w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock should be acquirable")
}
