package shifts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.sync, nil).RegisterRoutes(r)
	return r
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAcceptThenConflict(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, nil)
	router := newTestRouter(f)

	rec := postJSON(router, "/shifts/actions", `{"shiftListingId":"`+l.ID.String()+`","specialistId":"dr-ada","action":"accept"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res ActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.NotNil(t, res.BlockedTime)

	rec = postJSON(router, "/shifts/actions", `{"shiftListingId":"`+l.ID.String()+`","specialistId":"dr-ben","action":"accept"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, CodeListingUnavailable, body.Code)
}

func TestHandlerActionValidation(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, nil)
	router := newTestRouter(f)

	rec := postJSON(router, "/shifts/actions", `{"shiftListingId":"nope","specialistId":"dr-ada","action":"accept"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(router, "/shifts/actions", `{"shiftListingId":"`+l.ID.String()+`","specialistId":"dr-ada","action":"swap"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_action")

	rec = postJSON(router, "/shifts/actions", `{"shiftListingId":"`+l.ID.String()+`","specialistId":"dr-ada","action":"cancel"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "assignment_not_active")
}

func TestHandlerCreateListingAndApply(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rec := postJSON(router, "/shifts/listings", `{"clinic_id":"clinic-1","specialty":"Cardiology","date":"2026-10-21","start_time":"08:00","end_time":"12:00","time_zone":"UTC"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Listing Listing `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, ListingOpen, created.Listing.Status)

	rec = postJSON(router, "/shifts/"+created.Listing.ID.String()+"/applications", `{"specialistId":"dr-ben"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shifts/"+created.Listing.ID.String()+"/applications", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Applications []Assignment `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Applications, 1)
	assert.Equal(t, "dr-ben", list.Applications[0].SpecialistID)

	rec = postJSON(router, "/shifts/listings", `{"clinic_id":"clinic-1","specialty":"Cardiology","date":"21/10/2026","start_time":"08:00","end_time":"12:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerComplete(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, nil)
	router := newTestRouter(f)

	res, err := f.sync.Accept(context.Background(), l.ID, "dr-ada")
	require.NoError(t, err)

	rec := postJSON(router, "/shifts/assignments/"+res.AssignmentID.String()+"/complete", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(router, "/shifts/assignments/"+res.AssignmentID.String()+"/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
