package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records latency and status per route. Event Grid retries carry a
// non-zero aeg-delivery-count and are counted separately, since a rising
// rate means ingest is failing upstream of the handler's logs.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()

		if n, err := strconv.Atoi(c.GetHeader("aeg-delivery-count")); err == nil && n > 0 {
			metrics.EventRedeliveriesTotal.Inc()
		}
	}
}
