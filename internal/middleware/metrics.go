package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/helpdesk-datagen/internal/service"
)

// UnmatchedRoute labels requests that did not hit a registered route.
const UnmatchedRoute = "unmatched"

// Metrics observes every request against its route template.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
