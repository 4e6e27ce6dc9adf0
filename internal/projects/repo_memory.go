package projects

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores projects in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Project
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Project)}
}

// Create stores the project.
func (r *MemoryRepo) Create(ctx context.Context, project Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[project.ID] = project
	return nil
}

// GetByID returns a project by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, projectID string) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.byID[projectID]
	if !ok {
		return Project{}, ErrNotFound
	}
	return project, nil
}

// SetStatus updates the project status.
func (r *MemoryRepo) SetStatus(ctx context.Context, projectID, status string) error {
	return r.mutate(ctx, projectID, func(p *Project) {
		p.Status = status
	})
}

// SetOutput records the rendered output location.
func (r *MemoryRepo) SetOutput(ctx context.Context, projectID, outputURL string) error {
	return r.mutate(ctx, projectID, func(p *Project) {
		p.OutputURL = outputURL
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, projectID string, fn func(p *Project)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.byID[projectID]
	if !ok {
		return ErrNotFound
	}
	fn(&project)
	project.UpdatedAt = time.Now().UTC()
	r.byID[projectID] = project
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
