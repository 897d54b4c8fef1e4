package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// dummyHash is compared against when the email is unknown so that a missing
// user costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := hashPassword(uuid.NewString())
	return h
})

// UserStore persists user records.
type UserStore interface {
	// CreateUser returns ErrConflict when the email is already taken.
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}

type RegisterInput struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"dateOfBirth"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type Credentials struct {
	users UserStore
	now   func() time.Time
}

func NewCredentials(users UserStore) *Credentials {
	return &Credentials{users: users, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date. Timestamps are read in UTC.
func normalizeDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Format(time.DateOnly), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC().Format(time.DateOnly), nil
	}
	return "", fmt.Errorf("%w: dateOfBirth must be YYYY-MM-DD or an ISO 8601 timestamp", ErrValidation)
}

// Register hashes the password and stores a new user.
func (c *Credentials) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	dob, err := normalizeDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Address:     in.Address,
		DateOfBirth: dob,
		Email:       email,
		Password:    hashed,
		CreatedAt:   c.now().UTC(),
	}
	if err := c.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// VerifyPassword reports whether candidate matches the stored hash.
func (c *Credentials) VerifyPassword(u *User, candidate string) bool {
	return comparePassword(u.Password, candidate)
}

// Authenticate resolves a user by email and password. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := c.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			comparePassword(dummyHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !c.VerifyPassword(u, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (c *Credentials) Profile(ctx context.Context, userID string) (*User, error) {
	u, err := c.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
