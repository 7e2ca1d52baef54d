package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"studyai-backend/internal/shared/metrics"
	"studyai-backend/internal/shared/server/respond"
	"studyai-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. A chat stream that
// already sent its headers is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncPanic()
			telemetry.Error("http.panic", map[string]any{
				"request_id":      RequestIDFromContext(c),
				"user_id":         UserIDFromContext(c),
				"generation_kind": c.GetString("generationKind"),
				"error":           rec,
				"stack":           string(debug.Stack()),
				"path":            c.Request.URL.Path,
				"method":          c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
