package projects

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new project.
func (r *PGRepo) Create(ctx context.Context, project Project) error {
	const query = `
INSERT INTO projects (id, owner_id, name, timeline, status, output_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	var timeline any
	if len(project.Timeline) > 0 {
		timeline = string(project.Timeline)
	}
	var output any
	if project.OutputURL != "" {
		output = project.OutputURL
	}
	_, err := r.DB.ExecContext(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		timeline,
		project.Status,
		output,
		project.CreatedAt,
	)
	return err
}

// GetByID returns a project by ID.
func (r *PGRepo) GetByID(ctx context.Context, projectID string) (Project, error) {
	const query = `
SELECT id, owner_id, name, timeline, status, output_url, created_at, updated_at
FROM projects
WHERE id = $1
LIMIT 1`
	var (
		project  Project
		timeline sql.NullString
		output   sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, projectID).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&timeline,
		&project.Status,
		&output,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	if timeline.Valid {
		project.Timeline = []byte(timeline.String)
	}
	project.OutputURL = output.String
	return project, nil
}

// SetStatus updates the project status.
func (r *PGRepo) SetStatus(ctx context.Context, projectID, status string) error {
	return r.exec(ctx, `
UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`, projectID, status, time.Now().UTC())
}

// SetOutput records the rendered output location.
func (r *PGRepo) SetOutput(ctx context.Context, projectID, outputURL string) error {
	return r.exec(ctx, `
UPDATE projects SET output_url = $2, updated_at = $3 WHERE id = $1`, projectID, outputURL, time.Now().UTC())
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

var _ Repo = (*PGRepo)(nil)
