package server

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
)

type fakeSchedStore struct {
	mu        sync.Mutex
	watches   []models.Watch
	last      *time.Time
	latestErr error
	created   []models.Run
}

func (f *fakeSchedStore) ListWatches(ctx context.Context) ([]models.Watch, error) {
	return f.watches, nil
}

func (f *fakeSchedStore) LatestRunTime(ctx context.Context, watchID string) (*time.Time, error) {
	return f.last, f.latestErr
}

func (f *fakeSchedStore) CreateRun(ctx context.Context, run models.Run) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	return "run-sched-1", nil
}

func (f *fakeSchedStore) createdRuns() []models.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Run(nil), f.created...)
}

type fakeRunCache struct {
	mu       sync.Mutex
	statuses map[string]models.RunStatus
	locks    map[string]bool
	released chan string
}

func newFakeRunCache() *fakeRunCache {
	return &fakeRunCache{
		statuses: map[string]models.RunStatus{},
		locks:    map[string]bool{},
		released: make(chan string, 4),
	}
}

func (f *fakeRunCache) SetRunStatus(ctx context.Context, runID string, status models.RunStatus, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[runID] = status
	return nil
}

func (f *fakeRunCache) GetRunStatus(ctx context.Context, runID string) (models.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[runID]
	if !ok {
		return "", models.ErrRunNotFound
	}
	return status, nil
}

func (f *fakeRunCache) CacheReport(ctx context.Context, report models.Report, ttl time.Duration) error {
	return nil
}

func (f *fakeRunCache) GetCachedReport(ctx context.Context, runID string) (models.Report, bool, error) {
	return models.Report{}, false, nil
}

func (f *fakeRunCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[name] {
		return false, nil
	}
	f.locks[name] = true
	return true, nil
}

func (f *fakeRunCache) ReleaseLock(ctx context.Context, name string) error {
	f.mu.Lock()
	delete(f.locks, name)
	f.mu.Unlock()
	f.released <- name
	return nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestTickSkipsWatchOnLatestRunTimeError(t *testing.T) {
	st := &fakeSchedStore{
		watches:   []models.Watch{{ID: "w1", Query: "jane doe", CronSpec: "@hourly"}},
		latestErr: errors.New("connection refused"),
	}
	s := &Scheduler{Store: st, Logger: discardLogger()}

	s.tick()

	// a read failure must not look like a never-run watch
	if got := st.createdRuns(); len(got) != 0 {
		t.Fatalf("expected no runs while the store is failing, got %d", len(got))
	}
}

func TestTickFiresAndReleasesLock(t *testing.T) {
	st := &fakeSchedStore{
		watches: []models.Watch{{ID: "w1", Query: "jane doe", CronSpec: "@hourly"}},
	}
	cache := newFakeRunCache()
	rh := &RunsHandler{
		Store:    newMemRunStore(),
		Detector: &fakeRunner{},
		Cache:    cache,
		Logger:   discardLogger(),
	}
	s := &Scheduler{Store: st, Runs: rh, Cache: cache, Cfg: config.WatchConfig{}, Logger: discardLogger()}

	s.tick()

	select {
	case name := <-cache.released:
		if name != "watch:w1" {
			t.Fatalf("unexpected lock released: %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("lock never released after run")
	}
	if got := st.createdRuns(); len(got) != 1 || got[0].WatchID != "w1" {
		t.Fatalf("unexpected created runs: %+v", got)
	}
	cache.mu.Lock()
	held := cache.locks["watch:w1"]
	cache.mu.Unlock()
	if held {
		t.Fatalf("lock still held after release")
	}
}
