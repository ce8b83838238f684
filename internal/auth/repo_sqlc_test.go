package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortly/internal/db/sqlc"
	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/idgen"
)

// mockQueries implements the querier interface for testing.
type mockQueries struct {
	createUserFunc func(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	byUsernameFunc func(ctx context.Context, username string) (db.User, error)
	byIDFunc       func(ctx context.Context, id uuid.UUID) (db.User, error)
}

func (m *mockQueries) CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error) {
	return m.createUserFunc(ctx, arg)
}

func (m *mockQueries) GetUserByUsername(ctx context.Context, username string) (db.User, error) {
	if m.byUsernameFunc != nil {
		return m.byUsernameFunc(ctx, username)
	}
	return db.User{}, pgx.ErrNoRows
}

func (m *mockQueries) GetUserByID(ctx context.Context, id uuid.UUID) (db.User, error) {
	if m.byIDFunc != nil {
		return m.byIDFunc(ctx, id)
	}
	return db.User{}, pgx.ErrNoRows
}

func TestPgRepo_CreateUser(t *testing.T) {
	fixedID := uuid.MustParse("01890000-0000-7000-8000-000000000001")
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ids := idgen.Func(func() (uuid.UUID, error) { return fixedID, nil })

	t.Run("passes generated id and maps row", func(t *testing.T) {
		var got db.CreateUserParams
		q := &mockQueries{
			createUserFunc: func(_ context.Context, arg db.CreateUserParams) (db.User, error) {
				got = arg
				return db.User{
					ID: arg.ID, Username: arg.Username, Email: arg.Email,
					PasswordHash: arg.PasswordHash, CreatedAt: arg.CreatedAt,
				}, nil
			},
		}
		user, err := NewPostgresRepository(q, ids).CreateUser(t.Context(), NewUser{
			Username: "alice", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: created,
		})
		if err != nil {
			t.Fatalf("CreateUser() unexpected error: %v", err)
		}
		if got.ID != fixedID || got.CreatedAt != (pgtype.Timestamptz{Time: created, Valid: true}) {
			t.Errorf("params = %+v", got)
		}
		if user.ID != fixedID || user.Username != "alice" || !user.CreatedAt.Equal(created) {
			t.Errorf("user = %+v", user)
		}
	})

	tests := []struct {
		name     string
		err      error
		wantKind errx.Kind
		wantIs   error
	}{
		{"username taken", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_username_unique"}, errx.Conflict, ErrUsernameTaken},
		{"email taken", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_unique"}, errx.Conflict, ErrEmailTaken},
		{"other unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_pkey"}, errx.Conflict, nil},
		{"connection lost", errors.New("conn closed"), errx.Unavailable, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQueries{
				createUserFunc: func(context.Context, db.CreateUserParams) (db.User, error) {
					return db.User{}, tt.err
				},
			}
			_, err := NewPostgresRepository(q, ids).CreateUser(t.Context(), NewUser{Username: "alice"})
			if errx.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %v, want %v", errx.KindOf(err), tt.wantKind)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v does not wrap %v", err, tt.wantIs)
			}
		})
	}

	t.Run("id generation failure is internal", func(t *testing.T) {
		failing := idgen.Func(func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy") })
		_, err := NewPostgresRepository(&mockQueries{}, failing).CreateUser(t.Context(), NewUser{})
		if errx.KindOf(err) != errx.Internal {
			t.Errorf("kind = %v, want Internal", errx.KindOf(err))
		}
	})
}

func TestPgRepo_Lookups(t *testing.T) {
	repo := NewPostgresRepository(&mockQueries{}, nil)

	_, err := repo.GetUserByUsername(t.Context(), "nobody")
	if errx.KindOf(err) != errx.NotFound || !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByUsername() error = %v, want NotFound", err)
	}
	_, err = repo.GetUserByID(t.Context(), uuid.New())
	if errx.KindOf(err) != errx.NotFound || !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByID() error = %v, want NotFound", err)
	}
}
