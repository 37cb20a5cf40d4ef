package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Workflow metrics
	requisitionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requisition_transitions_total",
			Help: "Requisition workflow operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	expenseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expense_transitions_total",
			Help: "Expense workflow operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requisition_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "requisition_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "requisition_api_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// RecordTransition counts one workflow operation; outcome is "ok" or an error kind
func RecordTransition(action, outcome string) {
	requisitionTransitions.WithLabelValues(action, outcome).Inc()
}

func RecordExpenseTransition(action, outcome string) {
	expenseTransitions.WithLabelValues(action, outcome).Inc()
}

// SetWebsocketClients sets the number of live websocket connections
func SetWebsocketClients(count int) {
	websocketClients.Set(float64(count))
}

// Middleware records request counts and latency per route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
