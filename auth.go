package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// TokenStore persists refresh tokens.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, t *RefreshToken) error
	// FindRefreshToken returns ErrNotFound unless a record with exactly this
	// user id and token exists.
	FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"-"`
}

// TokenService mints and verifies access/refresh JWTs. Access tokens are
// stateless; refresh tokens are only honoured while present in the store.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	tokens        TokenStore
	now           func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, tokens TokenStore) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		tokens:        tokens,
		now:           time.Now,
	}
}

func (s *TokenService) sign(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) parse(token string, secret []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// IssueTokenPair mints an access token and a refresh token for userID. The
// refresh token is not persisted here.
func (s *TokenService) IssueTokenPair(userID string) (*TokenPair, error) {
	access, _, err := s.sign(userID, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, exp, err := s.sign(userID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: exp}, nil
}

// VerifyAccessToken returns the subject of a valid access token.
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	userID, err := s.parse(token, s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return userID, nil
}

// Refresh exchanges a stored, unexpired refresh token for a new access token.
// The refresh token itself is left untouched.
func (s *TokenService) Refresh(ctx context.Context, token string) (string, error) {
	userID, err := s.parse(token, s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	stored, err := s.tokens.FindRefreshToken(ctx, userID, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: refresh token not recognised", ErrForbidden)
		}
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	if !s.now().Before(stored.ExpiresAt) {
		return "", fmt.Errorf("%w: refresh token expired", ErrForbidden)
	}
	access, _, err := s.sign(userID, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", err
	}
	return access, nil
}

// StartSession issues a token pair and persists its refresh token. Used by
// both registration and login.
func (s *TokenService) StartSession(ctx context.Context, userID string) (*TokenPair, error) {
	pair, err := s.IssueTokenPair(userID)
	if err != nil {
		return nil, err
	}
	err = s.tokens.CreateRefreshToken(ctx, &RefreshToken{
		UserID:    userID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}
