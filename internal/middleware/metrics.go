package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"mm-swarm/services"
)

/**
 * HTTP request statistics middleware
 * @description
 * - Counts requests per matched route, "unknown" when nothing matched
 * - Records the handling time
 * - Counts responses with a status >= 400 as errors
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		services.IncrementRequestCount(route)
		services.RecordRequestDuration(route, time.Since(start).Seconds())
		if c.Writer.Status() >= 400 {
			services.IncrementErrorCount(route)
		}
	}
}
