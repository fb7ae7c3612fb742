package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestAuthenticateToken(t *testing.T) {
	a := New("s3cret", WithClock(fixedClock))
	require.True(t, a.Enforced())

	token, err := a.Issue("alice", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	uid, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	// The header fallback is ignored once tokens are enforced.
	r = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	r.Header.Set(HeaderUserID, "mallory")
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticateRejects(t *testing.T) {
	a := New("s3cret", WithClock(fixedClock))

	expired, err := New("s3cret", WithClock(func() time.Time { return fixedClock().Add(-2 * time.Hour) })).Issue("alice", time.Hour)
	require.NoError(t, err)
	foreign, err := New("other", WithClock(fixedClock)).Issue("alice", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(fixedClock().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"no subject", noSubject, ErrMissingUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			_, err := a.Authenticate(r)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHeaderFallback(t *testing.T) {
	a := New("")
	assert.False(t, a.Enforced())
	_, err := a.Issue("alice", time.Hour)
	assert.Error(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingUserID)

	r.Header.Set(HeaderUserID, " bob ")
	uid, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", uid)
}

func TestMiddleware(t *testing.T) {
	a := New("")
	var seen string
	h := a.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := UserIDFromContext(r.Context())
		require.NoError(t, err)
		seen = uid
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "carol")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", seen)
}
