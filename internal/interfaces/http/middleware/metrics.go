package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/prometheus"
)

// unmatchedRoute labels requests that hit no registered route, keeping the
// path label bounded.
const unmatchedRoute = "unmatched"

// Metrics records request counts and latencies per route template.
func Metrics(m *prometheus.MinerMetrics) gin.HandlerFunc {
	if m == nil {
		m = prometheus.NewMinerMetrics(nil)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
