package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortly/internal/db/sqlc"
	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/idgen"
)

const pgUniqueViolation = "23505"

// querier is the subset of *db.Queries the user store uses.
type querier interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	GetUserByUsername(ctx context.Context, username string) (db.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (db.User, error)
}

type pgRepo struct {
	q   querier
	ids idgen.Generator
}

// NewPostgresRepository returns a Repository backed by PostgreSQL queries.
// A nil ids uses UUID v7.
func NewPostgresRepository(q querier, ids idgen.Generator) Repository {
	if ids == nil {
		ids = idgen.NewV7()
	}
	return &pgRepo{q: q, ids: ids}
}

func fromPgUser(u db.User) User {
	return User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Time,
	}
}

func mapPgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errx.E(op, errx.NotFound, ErrUserNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_unique":
			return errx.E(op, errx.Conflict, ErrUsernameTaken)
		case "users_email_unique":
			return errx.E(op, errx.Conflict, ErrEmailTaken)
		}
		return errx.E(op, errx.Conflict, err)
	}
	return errx.E(op, errx.Unavailable, err)
}

func (r *pgRepo) CreateUser(ctx context.Context, user NewUser) (User, error) {
	const op = "auth.repo.CreateUser"

	id, err := r.ids.Generate()
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}

	row, err := r.q.CreateUser(ctx, db.CreateUserParams{
		ID:           id,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    pgtype.Timestamptz{Time: user.CreatedAt, Valid: true},
	})
	if err != nil {
		return User{}, mapPgError(op, err)
	}
	return fromPgUser(row), nil
}

func (r *pgRepo) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "auth.repo.GetUserByUsername"

	row, err := r.q.GetUserByUsername(ctx, username)
	if err != nil {
		return User{}, mapPgError(op, err)
	}
	return fromPgUser(row), nil
}

func (r *pgRepo) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "auth.repo.GetUserByID"

	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return User{}, mapPgError(op, err)
	}
	return fromPgUser(row), nil
}
