package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func googleError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": http.StatusText(code)}})
}

func TestGoogleEventsTreatsDuplicatesAsSuccess(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodPost:
			googleError(w, http.StatusConflict)
		case http.MethodDelete:
			googleError(w, http.StatusGone)
		default:
			googleError(w, http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	g := NewGoogleEvents().WithEndpoint(srv.URL + "/")
	conn := Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}}
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, g.Insert(context.Background(), conn, Event{ID: "shiftabc12", Start: start, End: start.Add(time.Hour)}))
	assert.Equal(t, "Bearer tok", auth)
	require.NoError(t, g.Delete(context.Background(), conn, "shiftabc12"))
}

func TestGoogleEventsSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		googleError(w, http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGoogleEvents().WithEndpoint(srv.URL + "/")
	conn := Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok"}}

	err := g.Insert(context.Background(), conn, Event{ID: "shiftabc12", Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.Error(t, err)
}

func TestGoogleEventsRequiresToken(t *testing.T) {
	err := NewGoogleEvents().Delete(context.Background(), Connection{ProviderID: "dr-ada"}, "shiftabc12")
	assert.ErrorIs(t, err, ErrNotConnected)
}
