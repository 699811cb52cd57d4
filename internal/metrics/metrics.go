// Package metrics provides Prometheus instrumentation for the roadwatch service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roadwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalyticsRequestsTotal counts outbound calls to the analytics API by
	// endpoint and result (ok, error, unauthorized, circuit_open).
	AnalyticsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "analytics_requests_total",
			Help:      "Outbound analytics API calls by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)

	// AnalyticsRequestDuration observes outbound analytics call latency.
	AnalyticsRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roadwatch",
			Name:      "analytics_request_duration_seconds",
			Help:      "Outbound analytics API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// SessionEventsTotal counts session lifecycle transitions
	// (login, signup, logout, invalidated, key_regenerated, profile_updated).
	SessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "session_events_total",
			Help:      "Session lifecycle events by kind.",
		},
		[]string{"event"},
	)

	// AuthFailuresTotal counts rejected auth attempts by operation.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "auth_failures_total",
			Help:      "Failed login/signup attempts by operation.",
		},
		[]string{"operation"},
	)

	// RiskClassificationsTotal counts classifier outcomes by scale and category.
	RiskClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "risk_classifications_total",
			Help:      "Risk classifications performed by scale and category.",
		},
		[]string{"scale", "category"},
	)

	// ActiveWebSocketClients tracks connected WebSocket dashboard clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "roadwatch",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DegradedResponsesTotal counts dashboard responses served in the
	// degraded/empty state because the analytics API was unavailable.
	DegradedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "degraded_responses_total",
			Help:      "Dashboard responses served degraded, by endpoint.",
		},
		[]string{"endpoint"},
	)

	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roadwatch", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalyticsRequestsTotal,
		AnalyticsRequestDuration,
		SessionEventsTotal,
		AuthFailuresTotal,
		RiskClassificationsTotal,
		ActiveWebSocketClients,
		DegradedResponsesTotal,
		GoroutineCount,
	)
}

// StartRuntimeCollector periodically samples the goroutine count into its
// gauge. Call in a goroutine; exits when ctx is done.
func StartRuntimeCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
