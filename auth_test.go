package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTokenService(store TokenStore) (*TokenService, *time.Time) {
	now := testEpoch
	s := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, store)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestIssueTokenPair_DistinctSecrets(t *testing.T) {
	s, _ := newTestTokenService(NewMemoryDB())

	pair, err := s.IssueTokenPair("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.Equal(t, testEpoch.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	sub, err := s.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", sub)

	// a refresh token is not an access token
	_, err = s.VerifyAccessToken(pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyAccessToken_Expiry(t *testing.T) {
	s, now := newTestTokenService(NewMemoryDB())
	pair, err := s.IssueTokenPair("user-1")
	require.NoError(t, err)

	*now = testEpoch.Add(15*time.Minute - time.Second)
	_, err = s.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)

	*now = testEpoch.Add(15 * time.Minute)
	_, err = s.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	s, _ := newTestTokenService(NewMemoryDB())
	pair, err := s.IssueTokenPair("user-1")
	require.NoError(t, err)

	other := NewTokenService("other-secret", "refresh-secret", time.Minute, time.Hour, nil)
	forged, err := other.IssueTokenPair("user-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":       "not-a-jwt",
		"tampered":      swapSignature(pair.AccessToken, pair.RefreshToken),
		"wrong secret":  forged.AccessToken,
		"alg none":      none,
		"no expiration": noExp,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.VerifyAccessToken(tok)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

// swapSignature returns tok carrying the signature of donor.
func swapSignature(tok, donor string) string {
	a := strings.Split(tok, ".")
	b := strings.Split(donor, ".")
	return a[0] + "." + a[1] + "." + b[2]
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	s, now := newTestTokenService(db)

	pair, err := s.StartSession(ctx, "user-1")
	require.NoError(t, err)

	*now = testEpoch.Add(time.Hour)
	access, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	sub, err := s.VerifyAccessToken(access)
	require.NoError(t, err)
	require.Equal(t, "user-1", sub)

	// refresh does not rotate; the same token keeps working
	_, err = s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, db.DeleteRefreshToken(ctx, pair.RefreshToken))
	_, err = s.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRefresh_Rejects(t *testing.T) {
	ctx := context.Background()
	s, now := newTestTokenService(NewMemoryDB())

	pair, err := s.StartSession(ctx, "user-1")
	require.NoError(t, err)

	// valid signature but never stored
	unstored, err := s.IssueTokenPair("user-1")
	require.NoError(t, err)
	_, err = s.Refresh(ctx, unstored.RefreshToken)
	require.ErrorIs(t, err, ErrForbidden)

	// an access token cannot be used to refresh
	_, err = s.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrForbidden)

	*now = testEpoch.Add(7 * 24 * time.Hour)
	_, err = s.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrForbidden)
}

type failingTokenStore struct{ TokenStore }

func (failingTokenStore) FindRefreshToken(context.Context, string, string) (*RefreshToken, error) {
	return nil, errors.New("connection reset")
}

func TestRefresh_StoreFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	s, _ := newTestTokenService(failingTokenStore{TokenStore: db})

	pair, err := s.StartSession(ctx, "user-1")
	require.NoError(t, err)

	_, err = s.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrForbidden))
}

func TestStartSession_PersistsRefreshToken(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	s, _ := newTestTokenService(db)

	pair, err := s.StartSession(ctx, "user-1")
	require.NoError(t, err)

	rt, err := db.FindRefreshToken(ctx, "user-1", pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshExpiresAt, rt.ExpiresAt)

	_, err = db.FindRefreshToken(ctx, "user-2", pair.RefreshToken)
	require.ErrorIs(t, err, ErrNotFound)
}
