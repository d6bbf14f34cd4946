package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/models"
)

// Audit emits a structured audit line after successful mutating requests.
// Gate and kiosk actions get persistent audit rows in the store; this
// middleware covers approval and flag mutations, where the structured log
// is the audit trail.
func Audit(logr *zap.Logger, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
		}
		if v, ok := c.Get(ContextUserKey); ok {
			if claims, isClaims := v.(*models.JWTClaims); isClaims {
				fields = append(fields,
					zap.String("actor_id", claims.UserID),
					zap.String("actor_role", string(claims.Role)))
			}
		}
		if target := c.Param("id"); target != "" {
			fields = append(fields, zap.String("target_id", target))
		}

		logr.Info("audit", fields...)
	}
}
