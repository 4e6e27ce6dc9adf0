package render

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateExclusive inserts the job behind a conditional guard so that two
// concurrent submissions for the same project cannot both land.
func (r *PGRepo) CreateExclusive(ctx context.Context, job Job) error {
	const query = `
INSERT INTO render_jobs (id, project_id, status, progress, logs, created_at, updated_at)
SELECT $1, $2, $3, $4, '[]'::jsonb, $5, $5
WHERE NOT EXISTS (
    SELECT 1 FROM render_jobs
    WHERE project_id = $2 AND status IN ('queued', 'running')
)`
	res, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.ProjectID,
		job.Status,
		job.Progress,
		job.CreatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRenderInFlight
	}
	return nil
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, project_id, status, progress, logs, error_message, created_at, updated_at
FROM render_jobs
WHERE id = $1
LIMIT 1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// ListByProject returns the project's jobs, newest first.
func (r *PGRepo) ListByProject(ctx context.Context, projectID string) ([]Job, error) {
	const query = `
SELECT id, project_id, status, progress, logs, error_message, created_at, updated_at
FROM render_jobs
WHERE project_id = $1
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// HasActiveForProject reports whether a queued or running job exists.
func (r *PGRepo) HasActiveForProject(ctx context.Context, projectID string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM render_jobs
    WHERE project_id = $1 AND status IN ('queued', 'running')
)`
	var active bool
	if err := r.DB.QueryRowContext(ctx, query, projectID).Scan(&active); err != nil {
		return false, err
	}
	return active, nil
}

// UpdateState moves a non-terminal job to the given status. The status guard
// keeps terminal states sticky even when worker reports arrive out of order.
func (r *PGRepo) UpdateState(ctx context.Context, jobID, status string, progress int, errorMessage *string) error {
	if status == StatusDone {
		progress = 100
	}
	const query = `
UPDATE render_jobs
SET status = $2, progress = GREATEST(progress, $3), error_message = $4, updated_at = $5
WHERE id = $1 AND status NOT IN ('done', 'failed')`
	res, err := r.DB.ExecContext(ctx, query, jobID, status, progress, errorMessage, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// AppendLog adds one line to the job's log stream.
func (r *PGRepo) AppendLog(ctx context.Context, jobID, line string) error {
	const query = `
UPDATE render_jobs
SET logs = logs || to_jsonb($2::text), updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, jobID, line, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job          Job
		logsRaw      sql.NullString
		errorMessage sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.Status,
		&job.Progress,
		&logsRaw,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	job.Logs = []string{}
	if logsRaw.Valid && logsRaw.String != "" {
		var logs []string
		if err := json.Unmarshal([]byte(logsRaw.String), &logs); err == nil {
			job.Logs = logs
		}
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	return job, nil
}

var _ Repo = (*PGRepo)(nil)
