package projects

import "context"

// Repo defines persistence operations for projects.
type Repo interface {
	Create(ctx context.Context, project Project) error
	GetByID(ctx context.Context, projectID string) (Project, error)
	SetStatus(ctx context.Context, projectID, status string) error
	SetOutput(ctx context.Context, projectID, outputURL string) error
}
