package analysis

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
)

// Trigger schedules processing for a job without the caller awaiting it.
// Implementations must never panic into or return errors to the caller; a
// dispatch failure leaves the job durably queued for a later retry.
type Trigger interface {
	Fire(ctx context.Context, jobID string)
}

// Processor is the worker entry point a trigger drives.
type Processor interface {
	Process(ctx context.Context, jobID string) (bool, error)
}

// GoTrigger runs processing on a detached goroutine with its own error
// boundary.
type GoTrigger struct {
	Processor Processor
}

// Fire spawns processing in the background.
func (t *GoTrigger) Fire(ctx context.Context, jobID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("trigger.panic", map[string]any{
					"job_id": jobID,
					"error":  fmt.Sprintf("%v", r),
				})
			}
		}()
		if _, err := t.Processor.Process(ctx, jobID); err != nil {
			telemetry.Error("trigger.process_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}()
}

// LoopbackTrigger schedules processing through an authenticated loopback call
// to the protected worker entry point. Useful when processing must run in a
// separate execution environment from the submitting request.
type LoopbackTrigger struct {
	BaseURL      string
	SharedSecret string
	HTTPClient   *http.Client
}

// NewLoopbackTrigger constructs a LoopbackTrigger.
func NewLoopbackTrigger(baseURL, sharedSecret string) *LoopbackTrigger {
	return &LoopbackTrigger{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		SharedSecret: sharedSecret,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Fire issues the loopback call on a detached goroutine. Failures are logged
// and swallowed.
func (t *LoopbackTrigger) Fire(ctx context.Context, jobID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("trigger.panic", map[string]any{
					"job_id": jobID,
					"error":  fmt.Sprintf("%v", r),
				})
			}
		}()

		url := fmt.Sprintf("%s/internal/jobs/%s/process", t.BaseURL, jobID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			telemetry.Error("trigger.dispatch_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
			return
		}
		req.Header.Set("X-Worker-Secret", t.SharedSecret)

		resp, err := t.HTTPClient.Do(req)
		if err != nil {
			telemetry.Error("trigger.dispatch_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			telemetry.Error("trigger.dispatch_failed", map[string]any{
				"job_id": jobID,
				"status": resp.StatusCode,
			})
		}
	}()
}
