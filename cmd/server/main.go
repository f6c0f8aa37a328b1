package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/pwcheck/internal/config"
	"github.com/jwalitptl/pwcheck/internal/handler"
	"github.com/jwalitptl/pwcheck/internal/handler/api"
	"github.com/jwalitptl/pwcheck/internal/handler/form"
	"github.com/jwalitptl/pwcheck/internal/middleware"
	"github.com/jwalitptl/pwcheck/internal/router"
	"github.com/jwalitptl/pwcheck/internal/service/check"
	"github.com/jwalitptl/pwcheck/internal/session"
	"github.com/jwalitptl/pwcheck/pkg/logger"
	"github.com/jwalitptl/pwcheck/pkg/metrics"
	"github.com/jwalitptl/pwcheck/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.LoggerConfig())

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, cfg.Monitoring.Namespace)

	// Password hasher; refuse to start with a broken backend
	hasher, err := security.NewHasher(cfg.HasherConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create password hasher")
	}
	if err := security.SelfTest(hasher); err != nil {
		log.Fatal().Err(err).Str("algorithm", string(hasher.Algorithm())).Msg("password hasher self-test failed")
	}

	// Session store
	store, err := session.NewStore(cfg.SessionStoreConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Session.Driver).Msg("failed to create session store")
	}
	store = session.Instrument(store, m)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close session store")
		}
	}()

	// Services and handlers
	checkSvc := check.NewService(hasher, m, log.With().Str("component", "check").Logger())
	h := handler.NewHandler(store, reg)
	formHandler := form.NewHandler(checkSvc, store, form.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		MaxAge: cfg.Session.TTL,
	})
	apiHandler := api.NewHandler(checkSvc)

	securityHeaders := middleware.DefaultSecurityConfig()
	securityHeaders.HSTS = cfg.Session.CookieSecure

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(formHandler, apiHandler, h, m, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RateClientTTL:    cfg.RateLimit.ClientTTL,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		MetricsEnabled:   cfg.Monitoring.PrometheusEnabled,
		MetricsPath:      cfg.Monitoring.MetricsPath,
		Security:         securityHeaders,
		Templates:        form.Templates(),
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r.Engine(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("algorithm", string(hasher.Algorithm())).
			Str("session_driver", cfg.Session.Driver).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
