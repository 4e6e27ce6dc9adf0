package render

import "context"

// Repo defines persistence operations for render jobs.
type Repo interface {
	// CreateExclusive inserts the job only if the project has no queued or
	// running job. Returns ErrRenderInFlight otherwise.
	CreateExclusive(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByProject(ctx context.Context, projectID string) ([]Job, error)
	HasActiveForProject(ctx context.Context, projectID string) (bool, error)
	// UpdateState moves the job to the given status and progress. Terminal
	// states are sticky: updating a done or failed job returns
	// ErrInvalidState.
	UpdateState(ctx context.Context, jobID, status string, progress int, errorMessage *string) error
	AppendLog(ctx context.Context, jobID, line string) error
}
