package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-coordination/internal/app/bootstrap"
	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/config"
	"github.com/wolfman30/telehealth-coordination/internal/directory"
	httpmiddleware "github.com/wolfman30/telehealth-coordination/internal/http/middleware"
	"github.com/wolfman30/telehealth-coordination/internal/search"
	"github.com/wolfman30/telehealth-coordination/internal/shifts"
	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter, check func(context.Context) error) http.Handler {
	t.Helper()

	logger := logging.New("error")
	reg := prometheus.NewRegistry()
	dir := directory.NewInMemoryDirectory(directory.ProviderCandidate{
		ID: "dr-ada", Name: "Ada", Specialties: []string{"Cardiology"}, Rating: 4.8,
		AcceptingNewPatients: true, VerificationStatus: directory.VerificationVerified,
	})
	svc, err := bootstrap.Build(&config.Config{
		SearchAvailabilityHorizonDays: 14,
		OutboxBatchSize:               10,
		OutboxMaxAttempts:             3,
	}, bootstrap.Infra{Directory: dir, Registerer: reg}, logger)
	require.NoError(t, err)

	return New(&Config{
		Logger:             logger,
		Search:             search.NewHandler(svc.Search, logger),
		Availability:       availability.NewHandler(svc.Ledger, logger),
		Shifts:             shifts.NewHandler(svc.Shifts, logger),
		Waitlist:           waitlist.NewHandler(svc.Waitlist, svc.Matcher, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://app.example.com"},
		InternalJWTSecret:  testSecret,
		SearchLimiter:      limiter,
		HealthCheck:        check,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthDegraded(t *testing.T) {
	rr := httptest.NewRecorder()
	h := newTestRouter(t, nil, func(context.Context) error { return errors.New("postgres down") })
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "postgres down")
}

func TestRouterSearchAndMetrics(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	body := bytes.NewBufferString(`{"specialty":"Cardiology"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search/specialists", body)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	var resp search.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.TotalCount)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "telehealth_search_requests_total")
}

func TestRouterSearchRateLimited(t *testing.T) {
	h := newTestRouter(t, httpmiddleware.NewRateLimiter(0.01, 1), nil)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/search/specialists", bytes.NewBufferString(`{"specialty":"Cardiology"}`))
		req.RemoteAddr = "192.0.2.10:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// other routes are not throttled
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/providers/dr-ada/availability", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouterInternalRequiresToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/waitlist/match", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := httpmiddleware.SignInternalToken(testSecret, "scheduler", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/internal/waitlist/match", bytes.NewBufferString(`{"specialty":"Cardiology"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"evaluated":0`)
}

func TestRouterUnknownRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
