package render

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/credits"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/middleware"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the render service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user-facing render routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/render", h.submitRender)
	rg.GET("/projects/:id/render-jobs", h.listRenderJobs)
	rg.GET("/render-jobs/:id", h.getRenderJob)
}

// RegisterInternalRoutes attaches worker report-back endpoints. The group must
// be guarded by the worker-secret middleware.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/render-jobs/:id/logs", h.appendLogs)
	rg.POST("/render-jobs/:id/status", h.reportStatus)
}

func (h *Handler) submitRender(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	requestID := middleware.RequestIDFromContext(c)

	job, err := h.Svc.Submit(c.Request.Context(), userID, projectID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
		case errors.Is(err, ErrNoTimeline):
			respond.Error(c, http.StatusBadRequest, "validation_error", "project has no timeline to render", nil)
		case errors.Is(err, ErrRenderInFlight):
			respond.Error(c, http.StatusConflict, "render_in_flight", "a render is already in progress for this project", nil)
		case errors.Is(err, credits.ErrInsufficientCredits):
			respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits to start a render", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "dispatch_failed", "failed to start render", nil)
		}
		return
	}
	c.Set("jobId", job.ID)
	c.Set("projectId", projectID)

	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":     job.ID,
		"projectId": job.ProjectID,
		"status":    job.Status,
	})
}

func (h *Handler) getRenderJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)

	job, err := h.Svc.Get(c.Request.Context(), jobID, userID, middleware.IsWorker(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "render job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch render job", nil)
		}
		return
	}
	c.Set("jobId", job.ID)
	c.Set("projectId", job.ProjectID)

	respond.OK(c, renderJobResponse(job))
}

func (h *Handler) listRenderJobs(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)

	jobs, err := h.Svc.ListForProject(c.Request.Context(), userID, projectID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list render jobs", nil)
		}
		return
	}
	c.Set("projectId", projectID)

	resp := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, renderJobResponse(job))
	}
	respond.OK(c, gin.H{"jobs": resp})
}

type appendLogsRequest struct {
	Lines []string `json:"lines"`
}

func (h *Handler) appendLogs(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	var req appendLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Lines) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "lines are required", nil)
		return
	}

	if err := h.Svc.AppendLogs(c.Request.Context(), jobID, req.Lines); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "render job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to append logs", nil)
		}
		return
	}
	c.Set("jobId", jobID)

	respond.OK(c, gin.H{"jobId": jobID})
}

type reportStatusRequest struct {
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	OutputURL string `json:"outputUrl"`
	Error     string `json:"error"`
}

func (h *Handler) reportStatus(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	var req reportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if !ValidStatus(req.Status) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status must be running, done or failed", nil)
		return
	}

	requestID := middleware.RequestIDFromContext(c)
	job, err := h.Svc.Report(c.Request.Context(), jobID, req.Status, req.Progress, req.OutputURL, req.Error, requestID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "render job not found", nil)
		case errors.Is(err, ErrInvalidState):
			respond.Error(c, http.StatusConflict, "invalid_state", "render job already finished", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update render job", nil)
		}
		return
	}
	c.Set("jobId", job.ID)
	c.Set("projectId", job.ProjectID)

	respond.OK(c, renderJobResponse(job))
}

func renderJobResponse(job Job) gin.H {
	resp := gin.H{
		"jobId":     job.ID,
		"projectId": job.ProjectID,
		"status":    job.Status,
		"progress":  job.Progress,
		"logs":      job.Logs,
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	}
	if job.ErrorMessage != nil {
		resp["error"] = *job.ErrorMessage
	} else {
		resp["error"] = nil
	}
	return resp
}
