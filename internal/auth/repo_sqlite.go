package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbsqlite "github.com/sundayezeilo/shortly/internal/db/sqlite"
	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/idgen"
)

const userColumns = `id, username, email, password_hash, created_at`

type sqliteRepo struct {
	db  *sql.DB
	ids idgen.Generator
}

// NewSQLiteRepository returns a Repository backed by an SQLite or libsql
// database. A nil ids uses UUID v7.
func NewSQLiteRepository(db *sql.DB, ids idgen.Generator) Repository {
	if ids == nil {
		ids = idgen.NewV7()
	}
	return &sqliteRepo{db: db, ids: ids}
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u         User
		id        string
		createdAt int64
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		return User{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return User{}, fmt.Errorf("user %s: bad id: %w", u.Username, err)
	}
	u.ID = parsed
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}

func mapSQLiteError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errx.E(op, errx.NotFound, ErrUserNotFound)
	case dbsqlite.IsUniqueViolation(err, "users.username"):
		return errx.E(op, errx.Conflict, ErrUsernameTaken)
	case dbsqlite.IsUniqueViolation(err, "users.email"):
		return errx.E(op, errx.Conflict, ErrEmailTaken)
	case dbsqlite.IsUniqueViolation(err, ""):
		return errx.E(op, errx.Conflict, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *sqliteRepo) CreateUser(ctx context.Context, user NewUser) (User, error) {
	const op = "auth.repo.CreateUser"

	id, err := r.ids.Generate()
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		id.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		return User{}, mapSQLiteError(op, err)
	}

	return User{
		ID:           id,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Unix(0, user.CreatedAt.UnixNano()).UTC(),
	}, nil
}

func (r *sqliteRepo) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "auth.repo.GetUserByUsername"

	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return User{}, mapSQLiteError(op, err)
	}
	return u, nil
}

func (r *sqliteRepo) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "auth.repo.GetUserByID"

	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String()))
	if err != nil {
		return User{}, mapSQLiteError(op, err)
	}
	return u, nil
}
