package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics("thing-service", reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/things/:id", func(c echo.Context) error {
		if c.Param("id") == "0" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/things/1", "/things/2", "/things/0"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("thing-service", "GET", "/things/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("thing-service", "GET", "/things/:id", "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.classes.WithLabelValues("thing-service", "2xx", "GET", "/things/:id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classes.WithLabelValues("thing-service", "4xx", "GET", "/things/:id")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusCreated))
	assert.Equal(t, "3xx", statusClass(http.StatusFound))
	assert.Equal(t, "4xx", statusClass(http.StatusUnprocessableEntity))
	assert.Equal(t, "5xx", statusClass(http.StatusInternalServerError))
	assert.Equal(t, "", statusClass(0))
}

func TestHTTPMetrics_SeparateRegistries(t *testing.T) {
	// each server instance owns its registry, so building two must not panic
	assert.NotPanics(t, func() {
		NewHTTPMetrics("a", prometheus.NewRegistry())
		NewHTTPMetrics("b", prometheus.NewRegistry())
	})
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics("thing-service", reg)
	m.classes.WithLabelValues("thing-service", "3xx", "POST", "/things").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `http_status_category_total{category="3xx",method="POST",path="/things",service="thing-service"} 1`))
}
