package dispatch

import (
	"context"
	"errors"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/metrics"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
)

// Task identifies a render job handed to an execution back-end.
type Task struct {
	JobID     string
	ProjectID string
	RequestID string
}

// Outcome reports which tier accepted the task.
type Outcome struct {
	Tier         string
	Confirmation string
}

// Tier is one render-execution back-end.
type Tier interface {
	Name() string
	// Configured reports whether the tier can be attempted at all. An
	// unconfigured tier is skipped silently.
	Configured() bool
	Dispatch(ctx context.Context, task Task) (string, error)
}

// Cascade tries tiers in order, falling through on failure. Only the first
// successful tier's result is acted upon; tiers never run concurrently.
type Cascade struct {
	tiers []Tier
}

// NewCascade constructs a cascade over the given tiers, in priority order.
func NewCascade(tiers ...Tier) *Cascade {
	return &Cascade{tiers: tiers}
}

// Dispatch walks the tiers until one accepts the task.
func (c *Cascade) Dispatch(ctx context.Context, task Task) (Outcome, error) {
	for _, tier := range c.tiers {
		if !tier.Configured() {
			continue
		}
		confirmation, err := tier.Dispatch(ctx, task)
		if err != nil {
			telemetry.Warn("dispatch.tier_failed", map[string]any{
				"request_id": task.RequestID,
				"job_id":     task.JobID,
				"project_id": task.ProjectID,
				"tier":       tier.Name(),
				"error":      err.Error(),
			})
			continue
		}
		metrics.IncDispatchTier(tier.Name())
		telemetry.Info("dispatch.accepted", map[string]any{
			"request_id":   task.RequestID,
			"job_id":       task.JobID,
			"project_id":   task.ProjectID,
			"tier":         tier.Name(),
			"confirmation": confirmation,
		})
		return Outcome{Tier: tier.Name(), Confirmation: confirmation}, nil
	}
	return Outcome{}, errors.New("no dispatch tier available")
}
