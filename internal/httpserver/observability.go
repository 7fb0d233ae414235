package httpserver

import (
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// observabilityMiddleware counts every request and logs the ones that failed,
// including the errors handlers attached with c.Error.
func observabilityMiddleware(stats *obs.Stats, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		stats.ObserveHTTP(status, dur)

		if status < 500 && len(c.Errors) == 0 {
			return
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("duration", dur),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs.Errors()))
		}
		if status >= 500 {
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request error", fields...)
	}
}
