package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
)

// Store wraps the Postgres connection used for users, watches, runs and
// persisted reports.
type Store struct {
	DB *sql.DB
}

// New opens the Postgres connection described by the config and pings it.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Watch operations
func (s *Store) CreateWatch(ctx context.Context, w models.Watch) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO watches (query, target, keywords, cron_spec)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		w.Query, w.Target, pq.Array(w.Keywords), w.CronSpec).Scan(&id)
	return id, err
}

func (s *Store) GetWatch(ctx context.Context, id string) (models.Watch, error) {
	var w models.Watch
	var keywords pq.StringArray
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, query, target, keywords, cron_spec, created_at, updated_at
		FROM watches WHERE id=$1`, id).
		Scan(&w.ID, &w.Query, &w.Target, &keywords, &w.CronSpec, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Watch{}, models.ErrWatchNotFound
	}
	if err != nil {
		return models.Watch{}, err
	}
	w.Keywords = keywords
	return w, nil
}

func (s *Store) ListWatches(ctx context.Context) ([]models.Watch, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, query, target, keywords, cron_spec, created_at, updated_at
		FROM watches ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Watch
	for rows.Next() {
		var w models.Watch
		var keywords pq.StringArray
		if err := rows.Scan(&w.ID, &w.Query, &w.Target, &keywords, &w.CronSpec, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Keywords = keywords
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWatch(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM watches WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrWatchNotFound
	}
	return nil
}

// LatestRunTime returns when a watch last ran, or nil when it never has.
func (s *Store) LatestRunTime(ctx context.Context, watchID string) (*time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
		SELECT MAX(COALESCE(finished_at, created_at)) FROM runs WHERE watch_id=$1`, watchID).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

// Run operations
func (s *Store) CreateRun(ctx context.Context, run models.Run) (string, error) {
	var watchID any
	if run.WatchID != "" {
		watchID = run.WatchID
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO runs (watch_id, query, target, status)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		watchID, run.Query, run.Target, run.Status).Scan(&id)
	return id, err
}

func (s *Store) SetRunStatus(ctx context.Context, runID string, status models.RunStatus) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE runs SET status=$2 WHERE id=$1`, runID, status)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE runs SET status=$2, error=NULLIF($3,''), finished_at=NOW() WHERE id=$1`,
		runID, status, errMsg)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID string) (models.Run, error) {
	var run models.Run
	var watchID, errMsg sql.NullString
	var finished sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, watch_id, query, target, status, error, created_at, finished_at
		FROM runs WHERE id=$1`, runID).
		Scan(&run.ID, &watchID, &run.Query, &run.Target, &run.Status, &errMsg, &run.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, models.ErrRunNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	run.WatchID = watchID.String
	run.Error = errMsg.String
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, watch_id, query, target, status, error, created_at, finished_at
		FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var run models.Run
		var watchID, errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &watchID, &run.Query, &run.Target, &run.Status, &errMsg, &run.CreatedAt, &finished); err != nil {
			return nil, err
		}
		run.WatchID = watchID.String
		run.Error = errMsg.String
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Report operations. Reports are stored as one JSONB document per run.
func (s *Store) SaveReport(ctx context.Context, report models.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO reports (run_id, overall_risk, body)
		VALUES ($1,$2,$3)
		ON CONFLICT (run_id) DO UPDATE SET overall_risk=EXCLUDED.overall_risk, body=EXCLUDED.body`,
		report.RunID, report.OverallRisk, body)
	return err
}

func (s *Store) GetReport(ctx context.Context, runID string) (models.Report, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, `SELECT body FROM reports WHERE run_id=$1`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, models.ErrRunNotFound
	}
	if err != nil {
		return models.Report{}, err
	}
	var report models.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return models.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}
