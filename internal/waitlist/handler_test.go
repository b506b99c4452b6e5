package waitlist

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *harness) http.Handler {
	r := chi.NewRouter()
	handler := NewHandler(h.service, h.matcher, nil)
	handler.RegisterRoutes(r)
	r.Route("/internal", handler.RegisterInternalRoutes)
	return r
}

func TestHandlerEntryLifecycle(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	router := newTestRouter(h)

	body := `{"patient_id":"patient-1","specialty":"Cardiology","language":"English","urgency_score":8,"max_wait_days":7,"preferred_times":[{"start":"09:00","end":"12:00"}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Entry Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Entry.ID.String()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/waitlist/match", strings.NewReader(`{"specialty":"Cardiology"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/waitlist/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"matched"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/"+id+"/reactivate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/"+id+"/reactivate", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/waitlist/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/waitlist/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejectsInvalidEntry(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist", strings.NewReader(`{"specialty":"Cardiology"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_entry")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/waitlist/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
