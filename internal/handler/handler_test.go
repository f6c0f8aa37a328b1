package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func setup(p Pinger, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(p, reg)
	h.RegisterRoutes(&r.RouterGroup)
	r.GET("/metrics", h.MetricsHandler())
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	var down error
	r := setup(pingFunc(func(context.Context) error { return down }), prometheus.NewRegistry())

	w := get(r, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)

	w = get(r, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	down = errors.New("connection refused")
	w = get(r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "refused")

	// liveness does not depend on the store
	assert.Equal(t, http.StatusOK, get(r, "/health/live").Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "pwcheck_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	w := get(setup(pingFunc(func(context.Context) error { return nil }), reg), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pwcheck_test_total 1")
}
