// README: Request logging middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/logger"
)

func Logging(log logger.Logger) gin.HandlerFunc {
	log = log.Action("http_request")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid := CallerUID(c); uid != "" {
			args = append(args, "caller_uid", uid)
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", c.Errors.Last().Err, args...)
			return
		}
		log.Info("request", args...)
	}
}
