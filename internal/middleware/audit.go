package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Audit logs a structured trail entry for every mutating attendance request.
// Failed requests are logged at warn level so rejected transitions stay visible.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok && claims != nil {
				fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
				if claims.StudentID != "" {
					fields = append(fields, zap.String("student_id", claims.StudentID))
				}
			}
		}

		if c.Writer.Status() >= 400 {
			logger.Warn("attendance request rejected", fields...)
			return
		}
		logger.Info("attendance request", fields...)
	}
}
