package analysis

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

// Create inserts a new analysis job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO analysis_jobs (id, owner_id, source_url, filename, content_type, status, progress, provider_task_id, result, error_code, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	resultPayload, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.OwnerID,
		job.SourceURL,
		nullString(job.Filename),
		nullString(job.ContentType),
		job.Status,
		job.Progress,
		job.ProviderTaskID,
		resultPayload,
		job.ErrorCode,
		job.ErrorMessage,
		job.CreatedAt,
		job.CreatedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, owner_id, source_url, filename, content_type, status, progress, provider_task_id, result, error_code, error_message, created_at, updated_at
FROM analysis_jobs
WHERE id = $1
LIMIT 1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// ListByOwner returns jobs for an owner ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, owner_id, source_url, filename, content_type, status, progress, provider_task_id, result, error_code, error_message, created_at, updated_at
FROM analysis_jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
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

// MarkProcessing sets status=processing with the work-started progress marker.
func (r *PGRepo) MarkProcessing(ctx context.Context, jobID string, progress int) error {
	const query = `
UPDATE analysis_jobs
SET status = $2, progress = GREATEST(progress, $3), updated_at = $4
WHERE id = $1`
	return r.exec(ctx, query, jobID, StatusProcessing, progress, time.Now().UTC())
}

// SetProviderTaskID persists the resumability checkpoint.
func (r *PGRepo) SetProviderTaskID(ctx context.Context, jobID, taskID string) error {
	const query = `
UPDATE analysis_jobs
SET provider_task_id = $2, updated_at = $3
WHERE id = $1`
	return r.exec(ctx, query, jobID, taskID, time.Now().UTC())
}

// UpdateProgress raises the job's progress, never lowering it.
func (r *PGRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	const query = `
UPDATE analysis_jobs
SET progress = GREATEST(progress, $2), updated_at = $3
WHERE id = $1`
	return r.exec(ctx, query, jobID, progress, time.Now().UTC())
}

// Complete sets status=done, progress=100 and stores the result payload.
func (r *PGRepo) Complete(ctx context.Context, jobID string, result *Result) error {
	resultPayload, err := marshalResult(result)
	if err != nil {
		return err
	}
	const query = `
UPDATE analysis_jobs
SET status = $2, progress = $3, result = $4, error_code = NULL, error_message = NULL, updated_at = $5
WHERE id = $1`
	return r.exec(ctx, query, jobID, StatusDone, ProgressDone, resultPayload, time.Now().UTC())
}

// Fail sets status=failed with the given code and message, leaving progress
// as-is.
func (r *PGRepo) Fail(ctx context.Context, jobID, code, message string) error {
	const query = `
UPDATE analysis_jobs
SET status = $2, error_code = $3, error_message = $4, updated_at = $5
WHERE id = $1`
	return r.exec(ctx, query, jobID, StatusFailed, code, message, time.Now().UTC())
}

// ResetForRetry moves a failed job back to queued via a conditional update,
// preserving the provider task id.
func (r *PGRepo) ResetForRetry(ctx context.Context, jobID string) error {
	const query = `
UPDATE analysis_jobs
SET status = $2, progress = 0, error_code = NULL, error_message = NULL, updated_at = $3
WHERE id = $1 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, jobID, StatusQueued, time.Now().UTC(), StatusFailed)
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

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
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
		job            Job
		filename       sql.NullString
		contentType    sql.NullString
		providerTaskID sql.NullString
		resultRaw      sql.NullString
		errorCode      sql.NullString
		errorMessage   sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.SourceURL,
		&filename,
		&contentType,
		&job.Status,
		&job.Progress,
		&providerTaskID,
		&resultRaw,
		&errorCode,
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
	job.Filename = filename.String
	job.ContentType = contentType.String
	if providerTaskID.Valid {
		job.ProviderTaskID = &providerTaskID.String
	}
	if errorCode.Valid {
		job.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if resultRaw.Valid && resultRaw.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resultRaw.String), &result); err == nil {
			job.Result = &result
		}
	}
	return job, nil
}

func marshalResult(result *Result) (any, error) {
	if result == nil {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
