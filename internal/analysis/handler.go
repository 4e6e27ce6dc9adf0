package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/middleware"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user-facing job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.submitJob)
	rg.GET("/jobs", h.listJobs)
	rg.GET("/jobs/:id", h.getJob)
	rg.POST("/jobs/:id/retry", h.retryJob)
}

// RegisterInternalRoutes attaches the worker entry point. The group must be
// guarded by the worker-secret middleware.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs/:id/process", h.processJob)
}

type submitRequest struct {
	SourceURL   string `json:"sourceUrl"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (h *Handler) submitJob(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Submit(ctx, userID, req.SourceURL, req.Filename, req.ContentType)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	c.Set("jobId", job.ID)

	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (h *Handler) getJob(c *gin.Context) {
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
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}
	c.Set("jobId", job.ID)

	resp := gin.H{
		"jobId":     job.ID,
		"status":    job.Status,
		"progress":  job.Progress,
		"sourceUrl": job.SourceURL,
		"filename":  job.Filename,
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	}
	if job.Status == StatusDone && job.Result != nil {
		resp["result"] = job.Result
	} else {
		resp["result"] = nil
	}
	if job.ErrorMessage != nil {
		resp["error"] = *job.ErrorMessage
	} else {
		resp["error"] = nil
	}
	if job.ErrorCode != nil {
		resp["errorCode"] = *job.ErrorCode
	}

	respond.OK(c, resp)
}

func (h *Handler) listJobs(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}

	resp := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		item := gin.H{
			"jobId":     job.ID,
			"status":    job.Status,
			"progress":  job.Progress,
			"sourceUrl": job.SourceURL,
			"filename":  job.Filename,
			"createdAt": job.CreatedAt,
		}
		if job.Status == StatusDone && job.Result != nil {
			item["summary"] = job.Result.Summary
		}
		resp = append(resp, item)
	}

	respond.OK(c, gin.H{"jobs": resp})
}

func (h *Handler) retryJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Retry(ctx, jobID, userID, middleware.IsWorker(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		case errors.Is(err, ErrInvalidState):
			respond.Error(c, http.StatusConflict, "invalid_state", "only failed jobs can be retried", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry job", nil)
		}
		return
	}
	c.Set("jobId", job.ID)
	c.Set("statusTransition", "failed->queued")

	respond.OK(c, gin.H{
		"jobId":    job.ID,
		"status":   job.Status,
		"progress": job.Progress,
	})
}

// processJob is the authenticated worker entry point. It runs the processing
// state machine synchronously and reports whether the job was already done.
func (h *Handler) processJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	alreadyDone, err := h.Svc.Process(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			// The failure is already persisted on the job row.
			respond.Error(c, http.StatusBadGateway, "processing_failed", err.Error(), nil)
		}
		return
	}
	c.Set("jobId", jobID)

	respond.OK(c, gin.H{
		"jobId":       jobID,
		"alreadyDone": alreadyDone,
	})
}
