package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slanderwatch/slanderwatch/models"
)

const (
	statusKeyPrefix = "run:status:"
	reportKeyPrefix = "run:report:"
	lockKeyPrefix   = "lock:"
)

// redisRunCache keeps hot run state in Redis so status polls and report reads
// skip Postgres.
type redisRunCache struct {
	client *redis.Client
}

func NewRedisRunCache(client *redis.Client) *redisRunCache {
	return &redisRunCache{client: client}
}

func (r *redisRunCache) SetRunStatus(ctx context.Context, runID string, status models.RunStatus, ttl time.Duration) error {
	return r.client.Set(ctx, statusKeyPrefix+runID, string(status), ttl).Err()
}

func (r *redisRunCache) GetRunStatus(ctx context.Context, runID string) (models.RunStatus, error) {
	val, err := r.client.Get(ctx, statusKeyPrefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", models.ErrRunNotFound
		}
		return "", err
	}
	return models.RunStatus(val), nil
}

func (r *redisRunCache) CacheReport(ctx context.Context, report models.Report, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, reportKeyPrefix+report.RunID, data, ttl).Err()
}

func (r *redisRunCache) GetCachedReport(ctx context.Context, runID string) (models.Report, bool, error) {
	val, err := r.client.Get(ctx, reportKeyPrefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Report{}, false, nil
		}
		return models.Report{}, false, err
	}
	var report models.Report
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return models.Report{}, false, err
	}
	return report, true, nil
}

// AcquireLock takes a best-effort distributed lock via SETNX. It returns
// false when another instance holds the lock.
func (r *redisRunCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKeyPrefix+name, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *redisRunCache) ReleaseLock(ctx context.Context, name string) error {
	return r.client.Del(ctx, lockKeyPrefix+name).Err()
}
