package indexing

import "context"

// Task statuses reported by the provider.
const (
	TaskStatusPending  = "pending"
	TaskStatusIndexing = "indexing"
	TaskStatusReady    = "ready"
	TaskStatusFailed   = "failed"
)

// Task is the provider's view of an indexing task.
type Task struct {
	ID         string
	Status     string
	Percentage int
	// VideoID is set once the task is ready and keys all derived-analysis calls.
	VideoID string
}

// Chapter is one entry of a chapter breakdown.
type Chapter struct {
	Number  int     `json:"chapterNumber"`
	Title   string  `json:"chapterTitle"`
	Summary string  `json:"chapterSummary"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Highlight is one entry of a highlight list.
type Highlight struct {
	Text  string  `json:"highlight"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VideoMetadata describes the indexed video.
type VideoMetadata struct {
	Duration   float64  `json:"duration"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	FPS        float64  `json:"fps"`
	Filename   string   `json:"filename"`
	Thumbnails []string `json:"thumbnails"`
}

// Client wraps the third-party asynchronous video-understanding provider.
// Derived-analysis calls are keyed by the video id a ready task reports and
// are each independently callable and independently failable.
type Client interface {
	CreateTask(ctx context.Context, sourceURL string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (Task, error)
	Summarize(ctx context.Context, videoID string) (string, error)
	Chapters(ctx context.Context, videoID string) ([]Chapter, error)
	Highlights(ctx context.Context, videoID string) ([]Highlight, error)
	GetVideoMetadata(ctx context.Context, videoID string) (VideoMetadata, error)
}
