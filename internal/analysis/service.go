package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/indexing"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/metrics"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// SummarySink receives a denormalized copy of the summary once a job
// completes. Sink failures never fail the job.
type SummarySink interface {
	CacheSummary(ctx context.Context, ownerID, sourceURL, summary string) error
}

// Service contains business logic for analysis jobs: submission, the
// processing state machine, and retry.
type Service struct {
	Repo     Repo
	Indexing indexing.Client
	Trigger  Trigger
	Summary  SummarySink

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Submit creates a queued job and kicks off asynchronous processing. It
// returns immediately without waiting for the processing to start.
func (s *Service) Submit(ctx context.Context, ownerID, sourceURL, filename, contentType string) (Job, error) {
	if ownerID == "" {
		return Job{}, errors.New("ownerID is required")
	}
	if err := validateSourceURL(sourceURL); err != nil {
		return Job{}, err
	}

	now := time.Now().UTC()
	job := Job{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		SourceURL:   sourceURL,
		Filename:    strings.TrimSpace(filename),
		ContentType: strings.TrimSpace(contentType),
		Status:      StatusQueued,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}

	s.fire(backgroundWithRequestID(ctx), job.ID)

	return job, nil
}

// Get returns a job by ID, filtered by owner unless the caller is the worker
// identity.
func (s *Service) Get(ctx context.Context, jobID, ownerID string, isWorker bool) (Job, error) {
	if jobID == "" {
		return Job{}, errors.New("jobID is required")
	}
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if !isWorker && job.OwnerID != ownerID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns jobs for an owner ordered newest-first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Job, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID is required")
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Retry re-queues a failed job, preserving its provider task id, and fires
// the same trigger used at creation. Any non-failed status is rejected with
// ErrInvalidState and no mutation.
func (s *Service) Retry(ctx context.Context, jobID, ownerID string, isWorker bool) (Job, error) {
	job, err := s.Get(ctx, jobID, ownerID, isWorker)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusFailed {
		return Job{}, ErrInvalidState
	}
	if err := s.Repo.ResetForRetry(ctx, jobID); err != nil {
		return Job{}, err
	}
	metrics.IncAnalysisRetried()
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            jobID,
		"owner_id":          job.OwnerID,
		"status":            StatusQueued,
		"status_transition": "failed->queued",
	})

	s.fire(backgroundWithRequestID(ctx), jobID)

	return s.Repo.GetByID(ctx, jobID)
}

// Process runs the job through the external indexing provider and harvests
// derived results. It is the single internal worker entry point: safe to call
// again on a crashed or concurrent job, and a no-op on a job that is already
// done (alreadyDone=true).
func (s *Service) Process(ctx context.Context, jobID string) (alreadyDone bool, err error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status == StatusDone {
		return true, nil
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, jobID, ProgressStarted); err != nil {
		return false, s.failJob(ctx, job, fmt.Errorf("set processing failed: %w", err), startedAt)
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            jobID,
		"owner_id":          job.OwnerID,
		"status":            StatusProcessing,
		"status_transition": job.Status + "->processing",
	})

	if s.Indexing == nil {
		return false, s.failJob(ctx, job, errors.New("missing indexing client"), startedAt)
	}

	taskID, videoID := s.resume(ctx, job)

	if taskID == "" {
		created, err := s.Indexing.CreateTask(ctx, job.SourceURL)
		if err != nil {
			return false, s.failJob(ctx, job, fmt.Errorf("create indexing task: %w", err), startedAt)
		}
		// Durability checkpoint: persist the task id before any waiting so a
		// crash mid-poll resumes instead of re-creating the task.
		if err := s.Repo.SetProviderTaskID(ctx, jobID, created); err != nil {
			return false, s.failJob(ctx, job, fmt.Errorf("persist provider task id: %w", err), startedAt)
		}
		taskID = created
	}

	if videoID == "" {
		videoID, err = s.pollTask(ctx, jobID, taskID)
		if err != nil {
			return false, s.failJob(ctx, job, err, startedAt)
		}
	}

	if err := s.Repo.UpdateProgress(ctx, jobID, ProgressHarvest); err != nil {
		telemetry.Warn("job.progress_update_failed", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}

	result := s.harvest(ctx, jobID, videoID)

	if err := s.Repo.Complete(ctx, jobID, result); err != nil {
		return false, s.failJob(ctx, job, fmt.Errorf("store analysis result: %w", err), startedAt)
	}

	if s.Summary != nil && result.Summary != "" {
		if err := s.Summary.CacheSummary(ctx, job.OwnerID, job.SourceURL, result.Summary); err != nil {
			telemetry.Warn("job.summary_writeback_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}

	completedAt := time.Now().UTC()
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            jobID,
		"owner_id":          job.OwnerID,
		"status":            StatusDone,
		"status_transition": "processing->done",
		"duration_ms":       float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0,
	})
	return false, nil
}

// resume inspects an existing provider task id, if any. It returns the task
// id to keep polling (empty when a fresh task must be created) and the video
// id when the task is already ready. A status-lookup error is treated the
// same as no id so a garbage or expired id cannot stall the job forever.
func (s *Service) resume(ctx context.Context, job Job) (taskID, videoID string) {
	if job.ProviderTaskID == nil || *job.ProviderTaskID == "" {
		return "", ""
	}
	existing := *job.ProviderTaskID
	task, err := s.Indexing.GetTaskStatus(ctx, existing)
	if err != nil {
		telemetry.Warn("job.resume_lookup_failed", map[string]any{
			"job_id":           job.ID,
			"provider_task_id": existing,
			"error":            err.Error(),
		})
		return "", ""
	}
	switch task.Status {
	case indexing.TaskStatusReady:
		if task.VideoID != "" {
			if err := s.Repo.UpdateProgress(ctx, job.ID, ProgressHandoff); err != nil {
				telemetry.Warn("job.progress_update_failed", map[string]any{
					"job_id": job.ID,
					"error":  err.Error(),
				})
			}
			return existing, task.VideoID
		}
		return existing, ""
	case indexing.TaskStatusFailed:
		// Stale id: discard and fall through to fresh task creation.
		return "", ""
	default:
		return existing, ""
	}
}

// pollTask waits for the external indexing phase to finish, mapping the
// provider's percentage onto overall progress. Transient lookup errors are
// retried until the deadline; this is the only auto-retrying external call.
func (s *Service) pollTask(ctx context.Context, jobID, taskID string) (string, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := s.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		task, err := s.Indexing.GetTaskStatus(ctx, taskID)
		if err != nil {
			telemetry.Warn("job.poll_failed", map[string]any{
				"job_id":           jobID,
				"provider_task_id": taskID,
				"error":            err.Error(),
			})
		} else {
			switch task.Status {
			case indexing.TaskStatusReady:
				if err := s.Repo.UpdateProgress(ctx, jobID, ProgressHandoff); err != nil {
					telemetry.Warn("job.progress_update_failed", map[string]any{
						"job_id": jobID,
						"error":  err.Error(),
					})
				}
				return task.VideoID, nil
			case indexing.TaskStatusFailed:
				return "", fmt.Errorf("indexing task %s failed", taskID)
			default:
				if err := s.Repo.UpdateProgress(ctx, jobID, MapExternalProgress(task.Percentage)); err != nil {
					telemetry.Warn("job.progress_update_failed", map[string]any{
						"job_id": jobID,
						"error":  err.Error(),
					})
				}
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("indexing timed out after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// harvest fans out the derived-analysis calls. Each call is independently
// best-effort: a failure degrades to an empty value and is logged, never
// returned.
func (s *Service) harvest(ctx context.Context, jobID, videoID string) *Result {
	result := &Result{
		Chapters:   []indexing.Chapter{},
		Highlights: []indexing.Highlight{},
		Thumbnails: []string{},
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		summary, err := s.Indexing.Summarize(ctx, videoID)
		if err != nil {
			s.logHarvestFailure(jobID, "summary", err)
			return
		}
		result.Summary = summary
	}()
	go func() {
		defer wg.Done()
		chapters, err := s.Indexing.Chapters(ctx, videoID)
		if err != nil {
			s.logHarvestFailure(jobID, "chapters", err)
			return
		}
		if chapters != nil {
			result.Chapters = chapters
		}
	}()
	go func() {
		defer wg.Done()
		highlights, err := s.Indexing.Highlights(ctx, videoID)
		if err != nil {
			s.logHarvestFailure(jobID, "highlights", err)
			return
		}
		if highlights != nil {
			result.Highlights = highlights
		}
	}()
	wg.Wait()

	meta, err := s.Indexing.GetVideoMetadata(ctx, videoID)
	if err != nil {
		s.logHarvestFailure(jobID, "metadata", err)
		return result
	}
	result.Metadata = &meta
	if meta.Thumbnails != nil {
		result.Thumbnails = meta.Thumbnails
	}
	return result
}

func (s *Service) logHarvestFailure(jobID, piece string, err error) {
	telemetry.Error("job.harvest_piece_failed", map[string]any{
		"job_id": jobID,
		"piece":  piece,
		"error":  sanitizeError(err),
	})
}

func (s *Service) failJob(ctx context.Context, job Job, cause error, startedAt time.Time) error {
	msg := sanitizeError(cause)
	code, retryable := classifyFailure(cause)
	if updateErr := s.Repo.Fail(context.Background(), job.ID, code, msg); updateErr != nil {
		telemetry.Error("job.fail_update_failed", map[string]any{
			"job_id": job.ID,
			"error":  updateErr.Error(),
			"cause":  msg,
		})
	}
	completedAt := time.Now().UTC()
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            job.ID,
		"owner_id":          job.OwnerID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error":             msg,
		"error_code":        code,
		"retryable":         retryable,
	})
	return cause
}

// classifyFailure buckets a processing failure into a stable client-facing
// code and reports whether a retry is worth attempting.
func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeIndexTimeout, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "indexing timed out") {
		return ErrorCodeIndexTimeout, true
	}
	if strings.Contains(msg, "indexing task") || strings.Contains(msg, "create indexing task") || strings.Contains(msg, "missing indexing client") {
		return ErrorCodeIndexFailed, true
	}
	if strings.Contains(msg, "sourceurl") {
		return ErrorCodeValidation, false
	}
	if strings.Contains(msg, "set processing") || strings.Contains(msg, "provider task id") || strings.Contains(msg, "analysis result") {
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

// fire dispatches the trigger without awaiting it. Trigger failures are the
// trigger's own concern; the job stays durably queued either way.
func (s *Service) fire(ctx context.Context, jobID string) {
	if s.Trigger == nil {
		telemetry.Warn("job.trigger_missing", map[string]any{"job_id": jobID})
		return
	}
	s.Trigger.Fire(ctx, jobID)
}

func validateSourceURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("sourceUrl is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New("sourceUrl must be an absolute http(s) URL")
	}
	return nil
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
