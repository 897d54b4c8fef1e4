package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer":             "",
		"Basic dXNlcjpwdw==": "",
		"Bearer abc.def":     "abc.def",
		"bearer  abc.def ":   "abc.def",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		require.Equal(t, want, bearerToken(r), header)
	}
}

func TestRequireAuth_AttachesIdentity(t *testing.T) {
	db := NewMemoryDB()
	tokens := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, time.Hour, db)
	app := NewApp(db, tokens, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen Identity
	h := app.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	pair, err := tokens.IssueTokenPair("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-1", seen.UserID)

	// refresh tokens are signed with another secret
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityFrom_Missing(t *testing.T) {
	_, ok := IdentityFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}
