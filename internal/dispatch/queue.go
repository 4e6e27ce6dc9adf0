package dispatch

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/queue"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
)

// QueueTier hands the task to the durable render queue. The queue client is
// created lazily; once a connection-level failure is observed the tier trips a
// breaker and stays out of the cascade for the rest of the process's lifetime.
type QueueTier struct {
	RedisURL string

	once    sync.Once
	client  queue.Client
	initErr error
	tripped atomic.Bool
}

// NewQueueTier constructs the queue tier. An empty URL leaves it unconfigured.
func NewQueueTier(redisURL string) *QueueTier {
	return &QueueTier{RedisURL: redisURL}
}

func (t *QueueTier) Name() string { return "queue" }

func (t *QueueTier) Configured() bool {
	return strings.TrimSpace(t.RedisURL) != "" && !t.tripped.Load()
}

func (t *QueueTier) Dispatch(ctx context.Context, task Task) (string, error) {
	client, err := t.getClient()
	if err != nil {
		t.trip(err)
		return "", err
	}
	msg := queue.Message{
		JobID:      task.JobID,
		ProjectID:  task.ProjectID,
		RequestID:  task.RequestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := client.Send(ctx, msg); err != nil {
		if isConnectionError(err) {
			t.trip(err)
		}
		return "", err
	}
	return task.JobID, nil
}

func (t *QueueTier) getClient() (queue.Client, error) {
	t.once.Do(func() {
		if t.client != nil {
			return
		}
		t.client, t.initErr = queue.NewRedisClient(t.RedisURL)
	})
	return t.client, t.initErr
}

func (t *QueueTier) trip(cause error) {
	if t.tripped.CompareAndSwap(false, true) {
		telemetry.Warn("dispatch.queue_breaker_tripped", map[string]any{
			"error": cause.Error(),
		})
	}
}

// isConnectionError reports whether the failure indicates the queue backend
// is unreachable, as opposed to a bad payload.
func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"connection refused", "connection reset", "i/o timeout", "dial tcp", "broken pipe", "EOF"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var _ Tier = (*QueueTier)(nil)
