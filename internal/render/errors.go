package render

import "errors"

var (
	// ErrNotFound indicates the render job does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("render job not found")

	// ErrRenderInFlight indicates the project already has a queued or
	// running render job.
	ErrRenderInFlight = errors.New("render already in flight for project")

	// ErrNoTimeline indicates the project has nothing to render.
	ErrNoTimeline = errors.New("project has no timeline")

	// ErrInvalidState indicates a state update was rejected because the job
	// already reached a terminal status.
	ErrInvalidState = errors.New("render job is in a terminal state")
)
