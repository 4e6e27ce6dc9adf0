package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/auth"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/respond"
)

const (
	userIDKey   = "userId"
	userEmail   = "userEmail"
	isWorkerKey = "isWorker"
)

// WorkerSecretHeader carries the shared secret for internal worker calls.
const WorkerSecretHeader = "X-Worker-Secret"

// Auth validates JWTs or guest headers and stores identity in context.
func Auth(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))

		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			claims, err := auth.VerifyJWT(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			c.Set(userIDKey, claims.Sub)
			if claims.Email != "" {
				c.Set(userEmail, claims.Email)
			}
			c.Set(isWorkerKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isWorkerKey, false)
		c.Next()
	}
}

// WorkerSecret guards internal worker entry points with an exact shared-secret
// header match. A mismatched or missing secret is rejected before any state is
// touched.
func WorkerSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(secret) == "" {
			respond.Error(c, http.StatusServiceUnavailable, "worker_disabled", "worker entry point not configured", nil)
			return
		}
		provided := c.GetHeader(WorkerSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid worker secret", nil)
			return
		}
		c.Set(isWorkerKey, true)
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsWorker reports whether the request carries the internal worker identity.
func IsWorker(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, _ := c.Get(isWorkerKey)
	worker, ok := val.(bool)
	return ok && worker
}
