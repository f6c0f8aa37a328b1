package router

import (
	"html/template"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/pwcheck/internal/handler"
	"github.com/jwalitptl/pwcheck/internal/middleware"
	"github.com/jwalitptl/pwcheck/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	formH   Handler
	apiH    Handler
	h       *handler.Handler
	metrics *metrics.Metrics
	config  RouterConfig
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateClientTTL    time.Duration
	MaxBodyBytes     int64
	MetricsEnabled   bool
	MetricsPath      string
	Security         middleware.SecurityConfig
	Templates        *template.Template
}

func NewRouter(
	formH Handler,
	apiH Handler,
	h *handler.Handler,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	engine := gin.New()
	if config.Templates != nil {
		engine.SetHTMLTemplate(config.Templates)
	}

	r := &Router{
		engine:  engine,
		formH:   formH,
		apiH:    apiH,
		h:       h,
		metrics: m,
		config:  config,
	}

	// Core middlewares; recovery sits inside the logger so panics are logged
	// with their final status.
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		r.metricsMiddleware(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(config.Security),
	)

	return r
}

func (r *Router) Setup() {
	r.setupOperational(&r.engine.RouterGroup)

	limited := r.engine.Group("")
	if r.config.RateLimitEnabled {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      r.config.RateLimit,
			Burst:     r.config.RateBurst,
			ClientTTL: r.config.RateClientTTL,
		})
		limited.Use(rl.RateLimit())
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if r.config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = r.config.MaxBodyBytes
	}
	limited.Use(middleware.SizeLimit(sizeLimit))

	form := limited.Group("")
	form.Use(middleware.Cache(middleware.NoStoreConfig()))
	r.formH.RegisterRoutes(form)

	api := limited.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})
	r.apiH.RegisterRoutes(api)
}

func (r *Router) setupOperational(rg *gin.RouterGroup) {
	r.h.RegisterRoutes(rg)
	if r.config.MetricsEnabled {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		rg.GET(path, r.h.MetricsHandler())
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.metrics == nil {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
