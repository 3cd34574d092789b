package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agromart",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by service, route and status class",
		},
		[]string{"service", "method", "route", "status_class"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agromart",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by service and route",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "method", "route"},
	)

	apiInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agromart",
			Subsystem: "api",
			Name:      "requests_in_flight",
			Help:      "API requests currently being served",
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency, apiInFlight)
}

// MetricsMiddleware records request counts and latency for service. Routes
// are labelled by their gin pattern, so /orders/:id stays one series.
func MetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inFlight := apiInFlight.WithLabelValues(service)
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		apiRequests.WithLabelValues(service, c.Request.Method, route, statusClass(c.Writer.Status())).Inc()
		apiLatency.WithLabelValues(service, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
