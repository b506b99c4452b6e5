package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/telehealth-coordination/cmd/mainconfig"
	"github.com/wolfman30/telehealth-coordination/internal/api/router"
	"github.com/wolfman30/telehealth-coordination/internal/app/bootstrap"
	"github.com/wolfman30/telehealth-coordination/internal/availability"
	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
	httpmiddleware "github.com/wolfman30/telehealth-coordination/internal/http/middleware"
	"github.com/wolfman30/telehealth-coordination/internal/search"
	"github.com/wolfman30/telehealth-coordination/internal/shifts"
	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

func main() {
	if err := mainconfig.LoadDotEnv(); err != nil {
		logging.Default().Warn("failed to read .env", "error", err)
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth coordination API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, metricsHandler := setupMetrics()
	infra, closeInfra, err := mainconfig.OpenInfra(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("failed to connect backends", "error", err)
		os.Exit(1)
	}
	defer closeInfra()

	svc, err := bootstrap.Build(cfg, infra, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	// Without Postgres the outbox lives in this process, so nothing else can drain it.
	if svc.InMemory {
		go svc.Deliverer.Start(ctx)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, time.Minute, 10*time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerConfig(cfg, infra, svc, limiter, metricsHandler, logger)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func routerConfig(cfg *appconfig.Config, infra bootstrap.Infra, svc *bootstrap.Services, limiter *httpmiddleware.RateLimiter, metricsHandler http.Handler, logger *logging.Logger) *router.Config {
	var check func(ctx context.Context) error
	if infra.Pool != nil {
		check = infra.Pool.Ping
	}
	return &router.Config{
		Logger:             logger,
		Search:             search.NewHandler(svc.Search, logger),
		Availability:       availability.NewHandler(svc.Ledger, logger),
		Shifts:             shifts.NewHandler(svc.Shifts, logger),
		Waitlist:           waitlist.NewHandler(svc.Waitlist, svc.Matcher, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJWTSecret:  cfg.InternalJWTSecret,
		SearchLimiter:      limiter,
		HealthCheck:        check,
	}
}
