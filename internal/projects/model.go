package projects

import (
	"encoding/json"
	"time"
)

// Project statuses.
const (
	StatusDraft     = "draft"
	StatusRendering = "rendering"
	StatusDone      = "done"
	StatusFailed    = "failed"
)

// Project is the owning record for render jobs. The timeline schema itself is
// validated elsewhere; this core only cares whether one is present.
type Project struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	Timeline  json.RawMessage `json:"timeline,omitempty"`
	Status    string          `json:"status"`
	OutputURL string          `json:"outputUrl,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// HasTimeline reports whether a non-empty timeline is attached.
func (p Project) HasTimeline() bool {
	trimmed := string(p.Timeline)
	return trimmed != "" && trimmed != "null" && trimmed != "{}" && trimmed != "[]"
}
