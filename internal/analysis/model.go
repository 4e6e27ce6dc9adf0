package analysis

import (
	"time"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/indexing"
)

// Job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Result aggregates whatever derived analyses succeeded for a video.
type Result struct {
	Summary    string                  `json:"summary"`
	Chapters   []indexing.Chapter      `json:"chapters"`
	Highlights []indexing.Highlight    `json:"highlights"`
	Metadata   *indexing.VideoMetadata `json:"metadata,omitempty"`
	Thumbnails []string                `json:"thumbnails"`
}

// Job represents a video analysis job.
type Job struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	SourceURL   string    `json:"sourceUrl"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	// ProviderTaskID is the resumability key: once persisted it is stable
	// until an explicit retry.
	ProviderTaskID *string   `json:"providerTaskId,omitempty"`
	Result         *Result   `json:"result,omitempty"`
	ErrorCode      *string   `json:"errorCode,omitempty"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Terminal reports whether the job has reached a terminal status.
func (j Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}
