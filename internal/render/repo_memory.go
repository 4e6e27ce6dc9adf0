package render

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores render jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// CreateExclusive inserts the job unless the project already has an active one.
func (r *MemoryRepo) CreateExclusive(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.ProjectID == job.ProjectID && !existing.Terminal() {
			return ErrRenderInFlight
		}
	}
	if job.Logs == nil {
		job.Logs = []string{}
	}
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// ListByProject returns the project's jobs, newest first.
func (r *MemoryRepo) ListByProject(ctx context.Context, projectID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := []Job{}
	for _, job := range r.byID {
		if job.ProjectID == projectID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// HasActiveForProject reports whether a queued or running job exists.
func (r *MemoryRepo) HasActiveForProject(ctx context.Context, projectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.byID {
		if job.ProjectID == projectID && !job.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

// UpdateState moves a non-terminal job to the given status and progress.
func (r *MemoryRepo) UpdateState(ctx context.Context, jobID, status string, progress int, errorMessage *string) error {
	return r.mutate(ctx, jobID, func(job *Job) error {
		if job.Terminal() {
			return ErrInvalidState
		}
		job.Status = status
		if progress > job.Progress {
			job.Progress = progress
		}
		if status == StatusDone {
			job.Progress = 100
		}
		job.ErrorMessage = errorMessage
		return nil
	})
}

// AppendLog adds one line to the job's log stream.
func (r *MemoryRepo) AppendLog(ctx context.Context, jobID, line string) error {
	return r.mutate(ctx, jobID, func(job *Job) error {
		job.Logs = append(job.Logs, line)
		return nil
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, jobID string, fn func(job *Job) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

func cloneJob(job Job) Job {
	logs := make([]string, len(job.Logs))
	copy(logs, job.Logs)
	job.Logs = logs
	return job
}

var _ Repo = (*MemoryRepo)(nil)
