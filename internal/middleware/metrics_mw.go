package middleware

import (
	"account_service/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware counts requests per method, route and status.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.IncRequest(c.Request.Method, path, c.Writer.Status())
	}
}
