package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/indexing"
)

type fakeIndexing struct {
	mu sync.Mutex

	createCalls int
	createErr   error
	taskID      string

	statusCalls int
	statuses    []indexing.Task
	statusErr   error

	summary       string
	summaryErr    error
	chapters      []indexing.Chapter
	chaptersErr   error
	highlights    []indexing.Highlight
	highlightsErr error
	meta          indexing.VideoMetadata
	metaErr       error
}

func (f *fakeIndexing) CreateTask(ctx context.Context, sourceURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.taskID == "" {
		return "task-1", nil
	}
	return f.taskID, nil
}

func (f *fakeIndexing) GetTaskStatus(ctx context.Context, taskID string) (indexing.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return indexing.Task{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return indexing.Task{ID: taskID, Status: indexing.TaskStatusIndexing, Percentage: 50}, nil
	}
	idx := f.statusCalls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusCalls++
	task := f.statuses[idx]
	task.ID = taskID
	return task, nil
}

func (f *fakeIndexing) Summarize(ctx context.Context, videoID string) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeIndexing) Chapters(ctx context.Context, videoID string) ([]indexing.Chapter, error) {
	return f.chapters, f.chaptersErr
}

func (f *fakeIndexing) Highlights(ctx context.Context, videoID string) ([]indexing.Highlight, error) {
	return f.highlights, f.highlightsErr
}

func (f *fakeIndexing) GetVideoMetadata(ctx context.Context, videoID string) (indexing.VideoMetadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeIndexing) creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func readyTask(videoID string) indexing.Task {
	return indexing.Task{Status: indexing.TaskStatusReady, Percentage: 100, VideoID: videoID}
}

func setupService(t *testing.T, client indexing.Client) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:         repo,
		Indexing:     client,
		PollInterval: time.Millisecond,
		PollTimeout:  2 * time.Second,
	}
	return svc, repo
}

func queuedJob(t *testing.T, repo *MemoryRepo, id string) Job {
	t.Helper()
	job := Job{
		ID:        id,
		OwnerID:   "user-1",
		SourceURL: "https://cdn.example.com/video.mp4",
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestSubmitCreatesQueuedJob(t *testing.T) {
	svc, repo := setupService(t, &fakeIndexing{})

	job, err := svc.Submit(context.Background(), "user-1", "https://cdn.example.com/v.mp4", "v.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("expected progress 0, got %d", job.Progress)
	}

	stored, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.OwnerID != "user-1" || stored.SourceURL != "https://cdn.example.com/v.mp4" {
		t.Fatalf("unexpected stored job: %+v", stored)
	}
}

func TestSubmitRejectsBadSourceURL(t *testing.T) {
	svc, _ := setupService(t, &fakeIndexing{})

	for _, raw := range []string{"", "   ", "not-a-url", "ftp://example.com/v.mp4", "/relative/path"} {
		if _, err := svc.Submit(context.Background(), "user-1", raw, "", ""); err == nil {
			t.Errorf("expected error for sourceUrl %q", raw)
		}
	}
}

func TestProcessHappyPath(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{
			{Status: indexing.TaskStatusPending, Percentage: 0},
			{Status: indexing.TaskStatusIndexing, Percentage: 60},
			readyTask("video-1"),
		},
		summary:    "a video about things",
		chapters:   []indexing.Chapter{{Number: 1, Title: "Intro", Start: 0, End: 10}},
		highlights: []indexing.Highlight{{Text: "the good part", Start: 3, End: 7}},
		meta:       indexing.VideoMetadata{Duration: 120, Width: 1920, Height: 1080, Thumbnails: []string{"t1.jpg"}},
	}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-happy")

	alreadyDone, err := svc.Process(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if alreadyDone {
		t.Fatalf("expected alreadyDone=false")
	}

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
	if got.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}
	if got.ProviderTaskID == nil || *got.ProviderTaskID != "task-1" {
		t.Fatalf("expected provider task id persisted, got %v", got.ProviderTaskID)
	}
	if got.Result == nil {
		t.Fatalf("expected result")
	}
	if got.Result.Summary != "a video about things" {
		t.Fatalf("unexpected summary %q", got.Result.Summary)
	}
	if len(got.Result.Chapters) != 1 || len(got.Result.Highlights) != 1 {
		t.Fatalf("unexpected result pieces: %+v", got.Result)
	}
	if got.Result.Metadata == nil || got.Result.Metadata.Duration != 120 {
		t.Fatalf("expected metadata, got %+v", got.Result.Metadata)
	}
	if len(got.Result.Thumbnails) != 1 {
		t.Fatalf("expected thumbnails from metadata, got %v", got.Result.Thumbnails)
	}
	if client.creates() != 1 {
		t.Fatalf("expected one task creation, got %d", client.creates())
	}
}

func TestProcessAlreadyDoneIsNoOp(t *testing.T) {
	client := &fakeIndexing{}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-done")
	if err := repo.Complete(context.Background(), job.ID, &Result{Summary: "kept"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	alreadyDone, err := svc.Process(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !alreadyDone {
		t.Fatalf("expected alreadyDone=true")
	}
	if client.creates() != 0 {
		t.Fatalf("expected no task creation, got %d", client.creates())
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Result == nil || got.Result.Summary != "kept" {
		t.Fatalf("existing result must be untouched: %+v", got.Result)
	}
}

func TestProcessResumesReadyTaskWithoutCreating(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{readyTask("video-9")},
		summary:  "resumed",
	}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-resume")
	if err := repo.SetProviderTaskID(context.Background(), job.ID, "task-existing"); err != nil {
		t.Fatalf("set task id: %v", err)
	}

	if _, err := svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if client.creates() != 0 {
		t.Fatalf("expected no task creation on resume, got %d", client.creates())
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
	if got.ProviderTaskID == nil || *got.ProviderTaskID != "task-existing" {
		t.Fatalf("provider task id must be preserved, got %v", got.ProviderTaskID)
	}
}

func TestProcessDiscardsFailedTaskAndCreatesFresh(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{
			{Status: indexing.TaskStatusFailed},
			readyTask("video-2"),
		},
	}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-stale")
	if err := repo.SetProviderTaskID(context.Background(), job.ID, "task-stale"); err != nil {
		t.Fatalf("set task id: %v", err)
	}

	if _, err := svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if client.creates() != 1 {
		t.Fatalf("expected a fresh task after stale id, got %d creations", client.creates())
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.ProviderTaskID == nil || *got.ProviderTaskID != "task-1" {
		t.Fatalf("expected fresh task id persisted, got %v", got.ProviderTaskID)
	}
}

func TestProcessHarvestFailuresDegrade(t *testing.T) {
	client := &fakeIndexing{
		statuses:   []indexing.Task{readyTask("video-3")},
		summaryErr: errors.New("summary backend down"),
		metaErr:    errors.New("metadata backend down"),
		chapters:   []indexing.Chapter{{Number: 1, Title: "Only chapter"}},
	}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-degrade")

	if _, err := svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusDone {
		t.Fatalf("harvest failures must not fail the job, got %s", got.Status)
	}
	if got.Result.Summary != "" {
		t.Fatalf("expected empty summary, got %q", got.Result.Summary)
	}
	if len(got.Result.Chapters) != 1 {
		t.Fatalf("expected surviving chapters, got %+v", got.Result.Chapters)
	}
	if got.Result.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", got.Result.Metadata)
	}
}

func TestProcessIndexingFailureFailsJob(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{{Status: indexing.TaskStatusFailed}},
	}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-fail")

	if _, err := svc.Process(context.Background(), job.ID); err == nil {
		t.Fatalf("expected error")
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatalf("expected error message persisted")
	}
	if got.ErrorCode == nil || *got.ErrorCode != ErrorCodeIndexFailed {
		t.Fatalf("expected %s, got %v", ErrorCodeIndexFailed, got.ErrorCode)
	}
}

func TestProcessPollTimeout(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{{Status: indexing.TaskStatusIndexing, Percentage: 40}},
	}
	svc, repo := setupService(t, client)
	svc.PollTimeout = 20 * time.Millisecond
	job := queuedJob(t, repo, "job-timeout")

	_, err := svc.Process(context.Background(), job.ID)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ProviderTaskID == nil {
		t.Fatalf("provider task id must survive a timeout for later retry")
	}
	if got.ErrorCode == nil || *got.ErrorCode != ErrorCodeIndexTimeout {
		t.Fatalf("expected %s, got %v", ErrorCodeIndexTimeout, got.ErrorCode)
	}
}

func TestRetryRequeuesFailedJobPreservingTaskID(t *testing.T) {
	client := &fakeIndexing{statuses: []indexing.Task{readyTask("video-4")}}
	svc, repo := setupService(t, client)
	job := queuedJob(t, repo, "job-retry")
	if err := repo.SetProviderTaskID(context.Background(), job.ID, "task-keep"); err != nil {
		t.Fatalf("set task id: %v", err)
	}
	if err := repo.Fail(context.Background(), job.ID, ErrorCodeInternal, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, err := svc.Retry(context.Background(), job.ID, "user-1", false)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}
	if got.Progress != 0 {
		t.Fatalf("expected progress reset, got %d", got.Progress)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("expected error cleared, got %v", *got.ErrorMessage)
	}
	if got.ErrorCode != nil {
		t.Fatalf("expected error code cleared, got %v", *got.ErrorCode)
	}
	if got.ProviderTaskID == nil || *got.ProviderTaskID != "task-keep" {
		t.Fatalf("provider task id must be preserved, got %v", got.ProviderTaskID)
	}
}

func TestRetryRejectsNonFailedJobs(t *testing.T) {
	svc, repo := setupService(t, &fakeIndexing{})

	for _, status := range []string{StatusQueued, StatusProcessing, StatusDone} {
		job := queuedJob(t, repo, "job-retry-"+status)
		if status != StatusQueued {
			repo.mu.Lock()
			j := repo.byID[job.ID]
			j.Status = status
			repo.byID[job.ID] = j
			repo.mu.Unlock()
		}

		if _, err := svc.Retry(context.Background(), job.ID, "user-1", false); !errors.Is(err, ErrInvalidState) {
			t.Errorf("status %s: expected ErrInvalidState, got %v", status, err)
		}
		got, _ := repo.GetByID(context.Background(), job.ID)
		if got.Status != status {
			t.Errorf("status %s: job mutated to %s", status, got.Status)
		}
	}
}

func TestGetHidesOtherOwnersJobs(t *testing.T) {
	svc, repo := setupService(t, &fakeIndexing{})
	job := queuedJob(t, repo, "job-owned")

	if _, err := svc.Get(context.Background(), job.ID, "someone-else", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := svc.Get(context.Background(), job.ID, "someone-else", true); err != nil {
		t.Fatalf("worker identity must see all jobs, got %v", err)
	}
}

type failingSink struct{}

func (failingSink) CacheSummary(ctx context.Context, ownerID, sourceURL, summary string) error {
	return errors.New("cache unavailable")
}

func TestSummarySinkFailureDoesNotFailJob(t *testing.T) {
	client := &fakeIndexing{
		statuses: []indexing.Task{readyTask("video-5")},
		summary:  "cached elsewhere",
	}
	svc, repo := setupService(t, client)
	svc.Summary = failingSink{}
	job := queuedJob(t, repo, "job-sink")

	if _, err := svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		err       error
		wantCode  string
		retryable bool
	}{
		{errors.New("indexing timed out after 10m0s"), ErrorCodeIndexTimeout, true},
		{context.DeadlineExceeded, ErrorCodeIndexTimeout, true},
		{errors.New("indexing task task-1 failed"), ErrorCodeIndexFailed, true},
		{errors.New("create indexing task: http status 500: boom"), ErrorCodeIndexFailed, true},
		{errors.New("sourceUrl must be an absolute http(s) URL"), ErrorCodeValidation, false},
		{errors.New("store analysis result: db gone"), ErrorCodeStorage, true},
		{errors.New("persist provider task id: db gone"), ErrorCodeStorage, true},
		{errors.New("something unexpected"), ErrorCodeInternal, false},
		{nil, ErrorCodeInternal, false},
	}
	for _, tc := range cases {
		code, retryable := classifyFailure(tc.err)
		if code != tc.wantCode || retryable != tc.retryable {
			t.Errorf("classifyFailure(%v) = (%s, %v), want (%s, %v)", tc.err, code, retryable, tc.wantCode, tc.retryable)
		}
	}
}

func TestMemoryRepoProgressNeverLowers(t *testing.T) {
	repo := NewMemoryRepo()
	job := queuedJob(t, repo, "job-mono")

	if err := repo.UpdateProgress(context.Background(), job.ID, 48); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.UpdateProgress(context.Background(), job.ID, 20); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Progress != 48 {
		t.Fatalf("progress must be monotonic, got %d", got.Progress)
	}
}
