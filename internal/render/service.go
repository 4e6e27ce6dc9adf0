package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/credits"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/dispatch"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/projects"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/metrics"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
)

// Dispatcher hands an admitted render job to an execution back-end.
type Dispatcher interface {
	Dispatch(ctx context.Context, task dispatch.Task) (dispatch.Outcome, error)
}

// Service admits render submissions: it checks ownership and the timeline,
// charges a credit, enforces one in-flight job per project, and hands the job
// to the dispatch cascade.
type Service struct {
	Repo     Repo
	Projects projects.Repo
	Credits  *credits.Service
	Cascade  Dispatcher
}

// NewService constructs a render Service.
func NewService(repo Repo, projectRepo projects.Repo, creditSvc *credits.Service, cascade Dispatcher) *Service {
	return &Service{Repo: repo, Projects: projectRepo, Credits: creditSvc, Cascade: cascade}
}

// Submit admits one render job for the project. The credit is charged before
// the job row exists; a later dispatch failure does not refund it.
func (s *Service) Submit(ctx context.Context, ownerID, projectID, requestID string) (Job, error) {
	project, err := s.Projects.GetByID(ctx, projectID)
	if errors.Is(err, projects.ErrNotFound) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("load project: %w", err)
	}
	if project.OwnerID != ownerID {
		// Hide other owners' projects entirely.
		return Job{}, ErrNotFound
	}
	if !project.HasTimeline() {
		metrics.IncRenderRejected("no_timeline")
		return Job{}, ErrNoTimeline
	}

	if _, err := s.Credits.Ensure(ctx, ownerID); err != nil {
		return Job{}, fmt.Errorf("ensure ledger: %w", err)
	}

	active, err := s.Repo.HasActiveForProject(ctx, projectID)
	if err != nil {
		return Job{}, fmt.Errorf("check in-flight render: %w", err)
	}
	if active {
		metrics.IncRenderRejected("in_flight")
		return Job{}, ErrRenderInFlight
	}

	jobID := uuid.NewString()
	if _, err := s.Credits.DebitForRender(ctx, ownerID, jobID); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			metrics.IncRenderRejected("insufficient_credits")
			return Job{}, err
		}
		return Job{}, fmt.Errorf("debit credit: %w", err)
	}

	now := time.Now().UTC()
	job := Job{
		ID:        jobID,
		ProjectID: projectID,
		Status:    StatusQueued,
		Progress:  0,
		Logs:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.CreateExclusive(ctx, job); err != nil {
		if errors.Is(err, ErrRenderInFlight) {
			// Lost a concurrent-submission race after the debit. The
			// surviving job is the one the credit paid for.
			metrics.IncRenderRejected("in_flight")
			return Job{}, ErrRenderInFlight
		}
		return Job{}, fmt.Errorf("create render job: %w", err)
	}

	if err := s.Projects.SetStatus(ctx, projectID, projects.StatusRendering); err != nil {
		telemetry.Warn("render.project_status_failed", map[string]any{
			"request_id": requestID,
			"job_id":     jobID,
			"project_id": projectID,
			"error":      err.Error(),
		})
	}

	outcome, err := s.Cascade.Dispatch(ctx, dispatch.Task{
		JobID:     jobID,
		ProjectID: projectID,
		RequestID: requestID,
	})
	if err != nil {
		return Job{}, s.failJob(requestID, job, fmt.Errorf("dispatch render: %w", err))
	}

	if err := s.Repo.AppendLog(ctx, jobID, "dispatched via "+outcome.Tier); err != nil {
		telemetry.Warn("render.log_append_failed", map[string]any{
			"request_id": requestID,
			"job_id":     jobID,
			"error":      err.Error(),
		})
	}

	metrics.IncRenderAdmitted()
	telemetry.Info("render.admitted", map[string]any{
		"request_id": requestID,
		"job_id":     jobID,
		"project_id": projectID,
		"tier":       outcome.Tier,
	})
	job.UpdatedAt = time.Now().UTC()
	return job, nil
}

// Get returns the render job if the caller owns its project. Workers see all
// jobs.
func (s *Service) Get(ctx context.Context, jobID, ownerID string, isWorker bool) (Job, error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if isWorker {
		return job, nil
	}
	project, err := s.Projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return Job{}, ErrNotFound
	}
	if project.OwnerID != ownerID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListForProject returns the project's render jobs for its owner.
func (s *Service) ListForProject(ctx context.Context, ownerID, projectID string) ([]Job, error) {
	project, err := s.Projects.GetByID(ctx, projectID)
	if errors.Is(err, projects.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return s.Repo.ListByProject(ctx, projectID)
}

// Claim moves a queued job to running when a worker picks it off the queue.
// Jobs that already progressed are left alone.
func (s *Service) Claim(ctx context.Context, jobID, requestID string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusQueued {
		telemetry.Info("render.claim_skipped", map[string]any{
			"request_id": requestID,
			"job_id":     jobID,
			"status":     job.Status,
		})
		return nil
	}
	if err := s.Repo.UpdateState(ctx, jobID, StatusRunning, job.Progress, nil); err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil
		}
		return err
	}
	telemetry.Info("render.claimed", map[string]any{
		"request_id": requestID,
		"job_id":     jobID,
		"project_id": job.ProjectID,
	})
	return nil
}

// AppendLogs records worker-reported log lines against the job.
func (s *Service) AppendLogs(ctx context.Context, jobID string, lines []string) error {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := s.Repo.AppendLog(ctx, jobID, sanitizeLine(line)); err != nil {
			return err
		}
	}
	return nil
}

// Report applies a worker's status update. Terminal reports also move the
// owning project.
func (s *Service) Report(ctx context.Context, jobID, status string, progress int, outputURL, errorMessage, requestID string) (Job, error) {
	if !ValidStatus(status) {
		return Job{}, fmt.Errorf("unknown status %q", status)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	var errMsg *string
	if status == StatusFailed {
		msg := sanitizeLine(errorMessage)
		if msg == "" {
			msg = "render failed"
		}
		errMsg = &msg
	}

	if err := s.Repo.UpdateState(ctx, jobID, status, progress, errMsg); err != nil {
		return Job{}, err
	}

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}

	switch status {
	case StatusDone:
		if outputURL != "" {
			if err := s.Projects.SetOutput(ctx, job.ProjectID, outputURL); err != nil {
				telemetry.Warn("render.project_output_failed", map[string]any{
					"request_id": requestID,
					"job_id":     jobID,
					"project_id": job.ProjectID,
					"error":      err.Error(),
				})
			}
		}
		s.setProjectStatus(ctx, requestID, job, projects.StatusDone)
	case StatusFailed:
		s.setProjectStatus(ctx, requestID, job, projects.StatusFailed)
	}

	telemetry.Info("render.reported", map[string]any{
		"request_id": requestID,
		"job_id":     jobID,
		"project_id": job.ProjectID,
		"status":     status,
		"progress":   job.Progress,
	})
	return job, nil
}

// failJob marks the job and its project failed after a hand-off error. The
// debited credit stays spent.
func (s *Service) failJob(requestID string, job Job, cause error) error {
	msg := sanitizeLine(cause.Error())
	ctx := context.Background()
	if err := s.Repo.UpdateState(ctx, job.ID, StatusFailed, job.Progress, &msg); err != nil {
		telemetry.Error("render.fail_persist_failed", map[string]any{
			"request_id": requestID,
			"job_id":     job.ID,
			"error":      err.Error(),
		})
	}
	s.setProjectStatus(ctx, requestID, job, projects.StatusFailed)
	metrics.IncRenderRejected("dispatch_failed")
	telemetry.Error("render.dispatch_failed", map[string]any{
		"request_id": requestID,
		"job_id":     job.ID,
		"project_id": job.ProjectID,
		"error":      msg,
	})
	return cause
}

func (s *Service) setProjectStatus(ctx context.Context, requestID string, job Job, status string) {
	if err := s.Projects.SetStatus(ctx, job.ProjectID, status); err != nil {
		telemetry.Warn("render.project_status_failed", map[string]any{
			"request_id": requestID,
			"job_id":     job.ID,
			"project_id": job.ProjectID,
			"error":      err.Error(),
		})
	}
}

const maxLineLength = 500

func sanitizeLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLineLength {
		s = s[:maxLineLength]
	}
	return s
}
