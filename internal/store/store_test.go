package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/slanderwatch/slanderwatch/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestCreateRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO runs`).
		WithArgs(nil, "jane doe", "jane doe", models.RunStatusCreated).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-1"))

	id, err := st.CreateRun(context.Background(), models.Run{
		Query:  "jane doe",
		Target: "jane doe",
		Status: models.RunStatusCreated,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("expected run-1, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, watch_id, query, target, status, error, created_at, finished_at`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	if err != models.ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestFinishRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status=\$2, error=NULLIF\(\$3,''\), finished_at=NOW\(\) WHERE id=\$1`).
		WithArgs("run-1", models.RunStatusFailed, "all searches failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinishRun(context.Background(), "run-1", models.RunStatusFailed, "all searches failed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAndGetReport(t *testing.T) {
	st, mock := newMockStore(t)

	report := models.Report{RunID: "run-1", Target: "jane doe", OverallRisk: 0.5}
	mock.ExpectExec(`INSERT INTO reports`).
		WithArgs("run-1", 0.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	mock.ExpectQuery(`SELECT body FROM reports WHERE run_id=\$1`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).
			AddRow([]byte(`{"run_id":"run-1","target":"jane doe","overall_risk":0.5}`)))

	got, err := st.GetReport(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Target != "jane doe" || got.OverallRisk != 0.5 {
		t.Fatalf("unexpected report: %+v", got)
	}
}

func TestDeleteWatchNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM watches WHERE id=\$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.DeleteWatch(context.Background(), "missing"); err != models.ErrWatchNotFound {
		t.Fatalf("expected ErrWatchNotFound, got %v", err)
	}
}

func TestLatestRunTime(t *testing.T) {
	st, mock := newMockStore(t)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(COALESCE\(finished_at, created_at\)\) FROM runs WHERE watch_id=\$1`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(ts))

	got, err := st.LatestRunTime(context.Background(), "w1")
	if err != nil {
		t.Fatalf("LatestRunTime: %v", err)
	}
	if got == nil || !got.Equal(ts) {
		t.Fatalf("unexpected time: %v", got)
	}

	mock.ExpectQuery(`SELECT MAX\(COALESCE\(finished_at, created_at\)\) FROM runs WHERE watch_id=\$1`).
		WithArgs("never").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err = st.LatestRunTime(context.Background(), "never")
	if err != nil {
		t.Fatalf("LatestRunTime: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for watch that never ran, got %v", got)
	}
}
