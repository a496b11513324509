package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idstore_http_requests_total",
			Help: "Total HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idstore_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SessionsActive tracks live sessions by principal type. The session
	// stores drive it: +1 on create, -1 on evict or delete.
	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idstore_sessions_active",
			Help: "Live sessions by principal type.",
		},
		[]string{"type"},
	)

	// RateLimitDenials counts denied admissions by operation.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idstore_rate_limit_denials_total",
			Help: "Rate-limited attempts by operation.",
		},
		[]string{"operation"},
	)
)

// PrometheusMiddleware records request counts and latencies.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
