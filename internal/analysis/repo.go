package analysis

import "context"

// Repo defines persistence operations for analysis jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error)

	// MarkProcessing sets status=processing with the work-started progress marker.
	MarkProcessing(ctx context.Context, jobID string, progress int) error

	// SetProviderTaskID persists the resumability checkpoint.
	SetProviderTaskID(ctx context.Context, jobID, taskID string) error

	// UpdateProgress raises the job's progress. Implementations never lower
	// progress while the job is processing.
	UpdateProgress(ctx context.Context, jobID string, progress int) error

	// Complete sets status=done, progress=100 and stores the result payload.
	Complete(ctx context.Context, jobID string, result *Result) error

	// Fail sets status=failed with the given code and message, leaving
	// progress as-is.
	Fail(ctx context.Context, jobID, code, message string) error

	// ResetForRetry moves a failed job back to queued, clearing progress and
	// error while preserving the provider task id. Returns ErrInvalidState if
	// the job is not failed.
	ResetForRetry(ctx context.Context, jobID string) error
}
