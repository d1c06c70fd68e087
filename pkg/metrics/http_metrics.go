package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics records per-route request counts, latency and status classes
type HTTPMetrics struct {
	ServiceName string

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	classes  *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics creates the HTTP collectors and registers them with reg
func NewHTTPMetrics(serviceName string, reg prometheus.Registerer) *HTTPMetrics {
	routeLabels := []string{"service", "method", "path", "status"}
	m := &HTTPMetrics{
		ServiceName: serviceName,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, routeLabels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, routeLabels),
		classes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status class (2xx, 3xx, 4xx, 5xx)",
		}, []string{"service", "category", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "Requests currently being served",
			ConstLabels: prometheus.Labels{"service": serviceName},
		}),
	}

	reg.MustRegister(m.requests, m.duration, m.classes, m.inFlight)
	return m
}

// statusClass maps 302 to "3xx". Codes outside 100-599 have no class.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return ""
	}
	return strconv.Itoa(status/100) + "xx"
}

// Middleware records every request under its route pattern, so /things/1 and
// /things/2 share one series
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			method, path := c.Request().Method, c.Path()
			code := strconv.Itoa(status)

			m.requests.WithLabelValues(m.ServiceName, method, path, code).Inc()
			m.duration.WithLabelValues(m.ServiceName, method, path, code).Observe(time.Since(start).Seconds())
			if class := statusClass(status); class != "" {
				m.classes.WithLabelValues(m.ServiceName, class, method, path).Inc()
			}
			return nil
		}
	}
}

// Handler returns an HTTP handler exposing the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
