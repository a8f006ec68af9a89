package middleware

import (
	"clinic-records/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler reports errors attached to the context with c.Error to
// Sentry once the handler chain has finished.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, ginErr := range c.Errors {
			logger.Debug("Reporting request error",
				zap.String("path", c.Request.URL.Path),
				zap.Error(ginErr.Err),
			)
			utils.CaptureError(ginErr.Err, map[string]interface{}{
				"endpoint":  c.Request.URL.Path,
				"procedure": c.Param("procedure"),
				"method":    c.Request.Method,
				"status":    c.Writer.Status(),
			})
		}
	}
}
