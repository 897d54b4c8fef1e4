package main

import "time"

// User represents a registered account
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	Email       string    `json:"email"`
	Password    string    `json:"-"` // bcrypt hash
	CreatedAt   time.Time `json:"createdAt"`
}

// RefreshToken represents a persisted refresh token
type RefreshToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Property represents a listing owned by a single user
type Property struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Images    []string  `json:"images"`
	Address   *string   `json:"address"`
	City      *string   `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
}

// PropertyPatch carries a partial update. Nil fields keep their stored value;
// a non-nil Images replaces the whole list.
type PropertyPatch struct {
	Images  []string
	Address *string
	City    *string
}
