package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func jobColumns() []string {
	return []string{"id", "project_id", "status", "progress", "logs", "error_message", "created_at", "updated_at"}
}

func TestPGRepoCreateExclusiveInserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO render_jobs").
		WithArgs("job-1", "proj-1", StatusQueued, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := Job{ID: "job-1", ProjectID: "proj-1", Status: StatusQueued, CreatedAt: time.Now().UTC()}
	if err := repo.CreateExclusive(context.Background(), job); err != nil {
		t.Fatalf("CreateExclusive: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateExclusiveConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Guarded insert touches no rows when an active job exists.
	mock.ExpectExec("INSERT INTO render_jobs").
		WithArgs("job-2", "proj-1", StatusQueued, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	job := Job{ID: "job-2", ProjectID: "proj-1", Status: StatusQueued, CreatedAt: time.Now().UTC()}
	if err := repo.CreateExclusive(context.Background(), job); !errors.Is(err, ErrRenderInFlight) {
		t.Fatalf("expected ErrRenderInFlight, got %v", err)
	}
}

func TestPGRepoUpdateStateSticky(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE render_jobs").
		WithArgs("job-1", StatusRunning, 10, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM render_jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "proj-1", StatusDone, 100, `["line"]`, nil,
			time.Now().UTC(), time.Now().UTC(),
		))

	err := repo.UpdateState(context.Background(), "job-1", StatusRunning, 10, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStateDoneForcesFullProgress(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE render_jobs").
		WithArgs("job-1", StatusDone, 100, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateState(context.Background(), "job-1", StatusDone, 40, nil); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoAppendLog(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("SET logs = logs").
		WithArgs("job-1", "frame 12 rendered", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AppendLog(context.Background(), "job-1", "frame 12 rendered"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoScanParsesLogs(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM render_jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "proj-1", StatusRunning, 55, `["a","b"]`, nil,
			time.Now().UTC(), time.Now().UTC(),
		))

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(job.Logs) != 2 || job.Logs[1] != "b" {
		t.Fatalf("unexpected logs %v", job.Logs)
	}
}
