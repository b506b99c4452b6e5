package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveInternal(t *testing.T, secret, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	h := InternalJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := InternalClaimsFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "scheduler", claims.Subject)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/waitlist/match", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func TestInternalJWTAcceptsSignedToken(t *testing.T) {
	token, err := SignInternalToken("secret", "scheduler", time.Minute)
	require.NoError(t, err)

	rec, called := serveInternal(t, "secret", "Bearer "+token)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalJWTRejects(t *testing.T) {
	good, err := SignInternalToken("secret", "scheduler", time.Minute)
	require.NoError(t, err)
	wrongKey, err := SignInternalToken("other", "scheduler", time.Minute)
	require.NoError(t, err)
	expired, err := SignInternalToken("secret", "scheduler", -time.Hour)
	require.NoError(t, err)
	noAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "scheduler",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := []struct {
		name, secret, header string
	}{
		{"auth disabled", "", "Bearer " + good},
		{"missing header", "secret", ""},
		{"wrong scheme", "secret", "Basic abc"},
		{"wrong key", "secret", "Bearer " + wrongKey},
		{"expired", "secret", "Bearer " + expired},
		{"no audience", "secret", "Bearer " + noAudience},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, called := serveInternal(t, tc.secret, tc.header)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}
}
