package shortener

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

const linkColumns = `id, code, target, owner_id, clicks, active, created_at, expires_at`

type sqliteRepo struct {
	db  *sql.DB
	ids idgen.Generator
}

// NewSQLiteRepository returns a Repository backed by an SQLite or libsql
// database opened with dbsqlite.Open. Timestamps are stored as Unix
// nanoseconds.
func NewSQLiteRepository(db *sql.DB, config *RepositoryConfig) Repository {
	return &sqliteRepo{
		db:  db,
		ids: config.idGenerator(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (Link, error) {
	var (
		id, code, target string
		owner            sql.NullString
		clicks           int64
		active           bool
		createdAt        int64
		expiresAt        sql.NullInt64
	)
	if err := row.Scan(&id, &code, &target, &owner, &clicks, &active, &createdAt, &expiresAt); err != nil {
		return Link{}, err
	}

	linkID, err := uuid.Parse(id)
	if err != nil {
		return Link{}, fmt.Errorf("link %s: bad id: %w", code, err)
	}
	link := Link{
		ID:        linkID,
		Code:      code,
		Target:    target,
		Clicks:    clicks,
		Active:    active,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if owner.Valid {
		ownerID, err := uuid.Parse(owner.String)
		if err != nil {
			return Link{}, fmt.Errorf("link %s: bad owner_id: %w", code, err)
		}
		link.OwnerID = &ownerID
	}
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64).UTC()
		link.ExpiresAt = &t
	}
	return link, nil
}

func ownerArg(owner *uuid.UUID) any {
	if owner == nil {
		return nil
	}
	return owner.String()
}

func unixNanoArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func mapSQLiteError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	case dbsqlite.IsUniqueViolation(err, "links.code"):
		return errx.E(op, errx.Conflict, fmt.Errorf("%w: %v", ErrDuplicateCode, err))
	case dbsqlite.IsUniqueViolation(err, constraintActiveTargetOwner):
		return errx.E(op, errx.Conflict, fmt.Errorf("%w: %v", ErrDuplicateTarget, err))
	case dbsqlite.IsUniqueViolation(err, ""):
		return errx.E(op, errx.Conflict, err)
	case dbsqlite.IsForeignKeyViolation(err):
		// owner_id is the only foreign key on links.
		return errx.E(op, errx.Unauthorized, fmt.Errorf("%w: %v", ErrUnknownOwner, err))
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *sqliteRepo) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapSQLiteError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return n > 0, nil
}

func (r *sqliteRepo) Insert(ctx context.Context, link NewLink) (Link, error) {
	const op = "shortener.repo.Insert"

	id, err := r.ids.Generate()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO links (id, code, target, owner_id, clicks, active, created_at, expires_at)
		 VALUES (?, ?, ?, ?, 0, 1, ?, ?)`,
		id.String(), link.Code, link.Target, ownerArg(link.OwnerID),
		link.CreatedAt.UnixNano(), unixNanoArg(link.ExpiresAt),
	)
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}

	out := Link{
		ID:        id,
		Code:      link.Code,
		Target:    link.Target,
		OwnerID:   link.OwnerID,
		Active:    true,
		CreatedAt: time.Unix(0, link.CreatedAt.UnixNano()).UTC(),
	}
	if link.ExpiresAt != nil {
		t := time.Unix(0, link.ExpiresAt.UnixNano()).UTC()
		out.ExpiresAt = &t
	}
	return out, nil
}

func (r *sqliteRepo) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.FindByCode"

	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE code = ?`, code)
	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}

func (r *sqliteRepo) FindActiveByTargetAndOwner(ctx context.Context, target string, owner *uuid.UUID) (Link, error) {
	const op = "shortener.repo.FindActiveByTargetAndOwner"

	row := r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE target = ? AND owner_id IS ? AND active = 1`,
		target, ownerArg(owner),
	)
	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}

func (r *sqliteRepo) IncrementClicks(ctx context.Context, code string) (bool, error) {
	return r.execAffected(ctx, "shortener.repo.IncrementClicks",
		`UPDATE links SET clicks = clicks + 1 WHERE code = ? AND active = 1`, code)
}

func (r *sqliteRepo) DeactivateExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	return r.execAffected(ctx, "shortener.repo.DeactivateExpired",
		`UPDATE links SET active = 0
		 WHERE code = ? AND active = 1 AND expires_at IS NOT NULL AND expires_at < ?`,
		code, now.UnixNano())
}

func (r *sqliteRepo) DeactivateOwned(ctx context.Context, code string, owner uuid.UUID) (bool, error) {
	return r.execAffected(ctx, "shortener.repo.DeactivateOwned",
		`UPDATE links SET active = 0 WHERE code = ? AND owner_id = ? AND active = 1`,
		code, owner.String())
}

func (r *sqliteRepo) SetExpiresAt(ctx context.Context, code string, owner uuid.UUID, expiresAt *time.Time) (bool, error) {
	return r.execAffected(ctx, "shortener.repo.SetExpiresAt",
		`UPDATE links SET expires_at = ? WHERE code = ? AND owner_id = ? AND active = 1`,
		unixNanoArg(expiresAt), code, owner.String())
}

func (r *sqliteRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error) {
	const op = "shortener.repo.ListByOwner"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		owner.String(),
	)
	if err != nil {
		return nil, mapSQLiteError(op, err)
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(op, err)
	}
	return links, nil
}
