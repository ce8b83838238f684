package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/errx"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores anything longer
)

// Session is the result of a successful login.
type Session struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// Service defines account operations.
type Service interface {
	Register(ctx context.Context, username, email, password string) (User, error)
	Login(ctx context.Context, username, password string) (Session, error)
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
}

type service struct {
	repo      Repository
	hasher    PasswordHasher
	tokens    *Tokens
	now       func() time.Time
	dummyHash string
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Hasher PasswordHasher // default: bcrypt at DefaultCost
	Clock  func() time.Time
}

// NewService creates a new account service issuing sessions through tokens.
func NewService(repo Repository, tokens *Tokens, config *ServiceConfig) (Service, error) {
	if config == nil {
		config = &ServiceConfig{}
	}
	hasher := config.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	// Compared against on unknown usernames so both failure paths cost a hash.
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}

	return &service{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		now:       func() time.Time { return clock().UTC() },
		dummyHash: dummy,
	}, nil
}

func (s *service) Register(ctx context.Context, username, email, password string) (User, error) {
	const op = "auth.service.Register"

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateUsername(username); err != nil {
		return User{}, errx.E(op, errx.Invalid, err)
	}
	if err := validateEmail(email); err != nil {
		return User{}, errx.E(op, errx.Invalid, err)
	}
	if err := validatePassword(password); err != nil {
		return User{}, errx.E(op, errx.Invalid, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}

	user, err := s.repo.CreateUser(ctx, NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return User{}, errx.E(op, errx.KindOf(err), err)
	}
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown usernames
// and wrong passwords produce the same Unauthorized error.
func (s *service) Login(ctx context.Context, username, password string) (Session, error) {
	const op = "auth.service.Login"

	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	switch {
	case errx.KindOf(err) == errx.NotFound:
		_ = s.hasher.Compare(s.dummyHash, password)
		return Session{}, errx.E(op, errx.Unauthorized, ErrInvalidCredentials)
	case err != nil:
		return Session{}, errx.E(op, errx.KindOf(err), err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return Session{}, errx.E(op, errx.Unauthorized, ErrInvalidCredentials)
		}
		return Session{}, errx.E(op, errx.Internal, err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, errx.E(op, errx.Internal, err)
	}
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *service) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "auth.service.UserByID"

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errx.E(op, errx.KindOf(err), err)
	}
	return user, nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return fmt.Errorf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength)
	}
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return errors.New("username may only contain letters, digits, '_', '.' and '-'")
		}
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return errors.New("invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}
