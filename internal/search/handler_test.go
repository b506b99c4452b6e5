package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
)

func newSearchRouter(dir directory.Directory) http.Handler {
	h := NewHandler(NewService(NewPlanner(dir, DefaultPlannerConfig(), nil), nil), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandlerSearchRelaxedRating(t *testing.T) {
	router := newSearchRouter(directory.NewInMemoryDirectory(
		provider("c1", "Cardiology", 4.1),
		provider("c2", "Cardiology", 4.3),
		provider("c3", "Cardiology", 4.0),
	))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/specialists",
		strings.NewReader(`{"specialty":"Cardiology","minRating":4.5}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "relaxed_rating", body["constraint_level"])
	assert.Equal(t, float64(3), body["total_count"])
	relaxations := body["relaxations_applied"].([]any)
	require.Len(t, relaxations, 1)
	assert.Equal(t, map[string]any{"field": "minRating", "from": 4.5, "to": 4.0}, relaxations[0])
}

func TestHandlerSearchErrors(t *testing.T) {
	router := newSearchRouter(directory.NewInMemoryDirectory())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/specialists", strings.NewReader(`{"language":"English"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_specialty")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/specialists", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	down := directory.NewInMemoryDirectory()
	down.SetError(directory.ErrUnavailable)
	rec = httptest.NewRecorder()
	newSearchRouter(down).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/specialists", strings.NewReader(`{"specialty":"Cardiology"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerSearchIgnoresUnknownKeys(t *testing.T) {
	router := newSearchRouter(directory.NewInMemoryDirectory(provider("c1", "Cardiology", 4.8)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/specialists",
		strings.NewReader(`{"specialty":"Cardiology","clientVersion":"3.2","sessionId":"abc"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "exact", body["constraint_level"])
}
