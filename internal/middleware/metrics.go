package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexocrm/nexo-backend/internal/telemetry"
)

// MetricsMiddleware records request count and latency for every request.
//
// The path label uses c.FullPath(), the matched route template
// (e.g. /api/system-activities/entity/:type/:id) rather than the raw URL.
// Requests that match no route use "<no-route>" so scans and typos do not
// inflate label cardinality.
//
// Must be registered after gin.Recovery() so the status set by error handlers
// is captured correctly.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
