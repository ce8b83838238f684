// Package auth provides user accounts and session tokens. The link core only
// sees the authenticated owner id that Authenticate places in the request
// context.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser holds the fields supplied when creating a user.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Repository persists users. Errors are *errx.Error values: NotFound for
// missing users, Conflict wrapping ErrUsernameTaken or ErrEmailTaken.
type Repository interface {
	CreateUser(ctx context.Context, user NewUser) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
}
