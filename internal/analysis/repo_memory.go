package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analysis jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Job
	byOwner map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Job),
		byOwner: make(map[string][]string),
	}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	r.byOwner[job.OwnerID] = append(r.byOwner[job.OwnerID], job.ID)
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByOwner returns jobs for an owner, newest first, with limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	ids := r.byOwner[ownerID]
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := r.byID[id]; ok {
			jobs = append(jobs, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if len(jobs) == 0 || offset >= len(jobs) {
		return []Job{}, nil
	}
	end := len(jobs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end], nil
}

// MarkProcessing sets status=processing with the work-started progress marker.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, jobID string, progress int) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.Status = StatusProcessing
		if progress > job.Progress {
			job.Progress = progress
		}
	})
}

// SetProviderTaskID persists the resumability checkpoint.
func (r *MemoryRepo) SetProviderTaskID(ctx context.Context, jobID, taskID string) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.ProviderTaskID = &taskID
	})
}

// UpdateProgress raises the job's progress, never lowering it.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		if progress > job.Progress {
			job.Progress = progress
		}
	})
}

// Complete sets status=done, progress=100 and stores the result payload.
func (r *MemoryRepo) Complete(ctx context.Context, jobID string, result *Result) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.Status = StatusDone
		job.Progress = ProgressDone
		job.Result = result
		job.ErrorCode = nil
		job.ErrorMessage = nil
	})
}

// Fail sets status=failed with the given code and message, leaving progress
// as-is.
func (r *MemoryRepo) Fail(ctx context.Context, jobID, code, message string) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorCode = &code
		job.ErrorMessage = &message
	})
}

// ResetForRetry moves a failed job back to queued.
func (r *MemoryRepo) ResetForRetry(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusFailed {
		return ErrInvalidState
	}
	job.Status = StatusQueued
	job.Progress = 0
	job.ErrorCode = nil
	job.ErrorMessage = nil
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

func (r *MemoryRepo) mutate(ctx context.Context, jobID string, fn func(job *Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(&job)
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
