package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/telehealth-coordination/internal/api/router"
	"github.com/wolfman30/telehealth-coordination/internal/app/bootstrap"
	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
	httpmiddleware "github.com/wolfman30/telehealth-coordination/internal/http/middleware"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

func TestSetupMetricsExposesServiceMetrics(t *testing.T) {
	reg, handler := setupMetrics()
	if reg == nil || handler == nil {
		t.Fatalf("expected non-nil registry and handler")
	}
	logger := logging.New("error")
	if _, err := bootstrap.Build(&appconfig.Config{}, bootstrap.Infra{Registerer: reg}, logger); err != nil {
		t.Fatalf("build services: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go runtime collector to be exported")
	}
}

func TestRouterConfigWithoutDatabase(t *testing.T) {
	cfg := &appconfig.Config{InternalJWTSecret: "s", CORSAllowedOrigins: []string{"*"}}
	logger := logging.New("error")
	reg, handler := setupMetrics()
	infra := bootstrap.Infra{Registerer: reg}
	svc, err := bootstrap.Build(cfg, infra, logger)
	if err != nil {
		t.Fatalf("build services: %v", err)
	}

	rc := routerConfig(cfg, infra, svc, httpmiddleware.NewRateLimiter(1, 1), handler, logger)
	if rc.HealthCheck != nil {
		t.Fatalf("expected no health check without a pool")
	}
	if rc.Search == nil || rc.Shifts == nil || rc.Waitlist == nil || rc.Availability == nil {
		t.Fatalf("expected every handler to be wired")
	}

	rr := httptest.NewRecorder()
	router.New(rc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthy without database, got %d", rr.Code)
	}
}
