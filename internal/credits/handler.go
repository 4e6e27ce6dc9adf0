package credits

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/middleware"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/respond"
)

// Handler exposes the caller's credit balance and history.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.getCredits)
}

func (h *Handler) getCredits(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	ledger, err := h.Svc.Ensure(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch credits", nil)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	txns, err := h.Svc.Transactions(c.Request.Context(), userID, limit, 0)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch credit history", nil)
		return
	}

	respond.OK(c, gin.H{
		"balance":      ledger.Balance,
		"transactions": txns,
	})
}
