package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.LatencyBucket.WithLabelValues(path).Observe(duration)
	}
}
