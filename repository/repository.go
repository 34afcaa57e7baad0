package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
	"github.com/slanderwatch/slanderwatch/repository/redis_repository"
)

// RunCache is the hot-path cache in front of Postgres: live run status,
// recently finished reports, and scheduler locks.
type RunCache interface {
	SetRunStatus(ctx context.Context, runID string, status models.RunStatus, ttl time.Duration) error
	GetRunStatus(ctx context.Context, runID string) (models.RunStatus, error)
	CacheReport(ctx context.Context, report models.Report, ttl time.Duration) error
	GetCachedReport(ctx context.Context, runID string) (models.Report, bool, error)
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type RepoType string

const (
	RepoTypeRedis = "redis"
)

func NewRunCache(ctx context.Context, t RepoType, cfg config.RedisConfig) (RunCache, error) {
	switch t {
	case RepoTypeRedis:
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		c, err := redis_repository.Conn(ctx, cfg.Host, cfg.Port, cfg.Password, cfg.DB, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return redis_repository.NewRedisRunCache(c), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", t)
}
