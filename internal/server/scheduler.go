package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/detect"
	"github.com/slanderwatch/slanderwatch/models"
	"github.com/slanderwatch/slanderwatch/repository"
)

// schedulerStore is the slice of the store the scheduler needs.
type schedulerStore interface {
	ListWatches(ctx context.Context) ([]models.Watch, error)
	LatestRunTime(ctx context.Context, watchID string) (*time.Time, error)
	CreateRun(ctx context.Context, run models.Run) (string, error)
}

// Scheduler fires watch runs when their cron spec is due. A redis lock keeps
// multiple server instances from firing the same watch.
type Scheduler struct {
	Store  schedulerStore
	Runs   *RunsHandler
	Cache  repository.RunCache
	Cfg    config.WatchConfig
	Stop   chan struct{}
	Logger *log.Logger
}

func (s *Scheduler) Start() {
	interval := s.Cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	watches, err := s.Store.ListWatches(ctx)
	if err != nil {
		s.Logger.Printf("list watches: %v", err)
		return
	}
	for _, w := range watches {
		last, err := s.Store.LatestRunTime(ctx, w.ID)
		if err != nil {
			// skip rather than treat a read failure as "never ran"
			s.Logger.Printf("latest run for watch %s: %v", w.ID, err)
			continue
		}
		if !isDue(w.CronSpec, last) {
			continue
		}

		// distributed lock to avoid duplicate runs
		if s.Cache != nil {
			lockTTL := s.Cfg.LockTTL
			if lockTTL <= 0 {
				lockTTL = 2 * time.Minute
			}
			ok, err := s.Cache.AcquireLock(ctx, "watch:"+w.ID, lockTTL)
			if err != nil {
				s.Logger.Printf("lock watch %s: %v", w.ID, err)
				continue
			}
			if !ok {
				continue
			}
		}

		runID, err := s.Store.CreateRun(ctx, models.Run{
			WatchID: w.ID,
			Query:   w.Query,
			Target:  w.Target,
			Status:  models.RunStatusCreated,
		})
		if err != nil {
			s.Logger.Printf("create run for watch %s: %v", w.ID, err)
			continue
		}
		s.Logger.Printf("watch %s due, starting run %s", w.ID, runID)

		go func(w models.Watch, runID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			s.Runs.execute(detect.Request{
				RunID:    runID,
				Query:    w.Query,
				Keywords: w.Keywords,
				Target:   w.Target,
			})
			if s.Cache != nil {
				if err := s.Cache.ReleaseLock(context.Background(), "watch:"+w.ID); err != nil {
					s.Logger.Printf("release lock for watch %s: %v", w.ID, err)
				}
			}
		}(w, runID)
	}
}

// isDue determines if a watch with cronSpec should run now based on the last
// run time. Supports "@daily", "@hourly", and standard cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// treat invalid specs as @daily
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
