package render

import "time"

// Render job statuses.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Job is one render attempt for a project. A project never has more than one
// non-terminal job at a time.
type Job struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	Logs         []string  `json:"logs"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job has reached a final state.
func (j Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// ValidStatus reports whether s is a status a worker may report.
func ValidStatus(s string) bool {
	switch s {
	case StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}
