package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortly/internal/db/sqlc"
	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/idgen"
)

// querier is the subset of *db.Queries the link store uses.
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByCode(ctx context.Context, code string) (db.Link, error)
	GetActiveLinkByTargetAndOwner(ctx context.Context, arg db.GetActiveLinkByTargetAndOwnerParams) (db.Link, error)
	IncrementLinkClicks(ctx context.Context, code string) (int64, error)
	DeactivateExpiredLink(ctx context.Context, arg db.DeactivateExpiredLinkParams) (int64, error)
	DeactivateOwnedLink(ctx context.Context, arg db.DeactivateOwnedLinkParams) (int64, error)
	SetLinkExpiry(ctx context.Context, arg db.SetLinkExpiryParams) (int64, error)
	ListLinksByOwner(ctx context.Context, ownerID uuid.NullUUID) ([]db.Link, error)
}

type pgRepo struct {
	q   querier
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

func (c *RepositoryConfig) idGenerator() idgen.Generator {
	if c == nil || c.IDGenerator == nil {
		return idgen.NewV7(idgen.WithRetries(1))
	}
	return c.IDGenerator
}

// NewPostgresRepository returns a Repository backed by PostgreSQL queries.
func NewPostgresRepository(q querier, config *RepositoryConfig) Repository {
	return &pgRepo{
		q:   q,
		ids: config.idGenerator(),
	}
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}

func fromPgLink(x db.Link) (Link, error) {
	if !x.CreatedAt.Valid {
		return Link{}, fmt.Errorf("link %s: created_at unexpectedly NULL", x.Code)
	}
	return Link{
		ID:        x.ID,
		Code:      x.Code,
		Target:    x.Target,
		OwnerID:   uuidPtr(x.OwnerID),
		Clicks:    x.Clicks,
		Active:    x.Active,
		CreatedAt: x.CreatedAt.Time,
		ExpiresAt: timePtr(x.ExpiresAt),
	}, nil
}

func mapPgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	if constraint, ok := pgUniqueConstraint(err); ok {
		switch constraint {
		case constraintCodeUnique:
			return errx.E(op, errx.Conflict, fmt.Errorf("%w: %v", ErrDuplicateCode, err))
		case constraintActiveTargetOwner:
			return errx.E(op, errx.Conflict, fmt.Errorf("%w: %v", ErrDuplicateTarget, err))
		}
		return errx.E(op, errx.Conflict, err)
	}
	if constraint, ok := pgForeignKeyConstraint(err); ok && constraint == constraintOwnerForeignKey {
		return errx.E(op, errx.Unauthorized, fmt.Errorf("%w: %v", ErrUnknownOwner, err))
	}
	return errx.E(op, errx.Unavailable, err)
}

func (r *pgRepo) Insert(ctx context.Context, link NewLink) (Link, error) {
	const op = "shortener.repo.Insert"

	id, err := r.ids.Generate()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:        id,
		Code:      link.Code,
		Target:    link.Target,
		OwnerID:   toNullUUID(link.OwnerID),
		CreatedAt: toTimestamptz(&link.CreatedAt),
		ExpiresAt: toTimestamptz(link.ExpiresAt),
	})
	if err != nil {
		return Link{}, mapPgError(op, err)
	}
	out, err := fromPgLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

func (r *pgRepo) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.FindByCode"

	row, err := r.q.GetLinkByCode(ctx, code)
	if err != nil {
		return Link{}, mapPgError(op, err)
	}
	out, err := fromPgLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

func (r *pgRepo) FindActiveByTargetAndOwner(ctx context.Context, target string, owner *uuid.UUID) (Link, error) {
	const op = "shortener.repo.FindActiveByTargetAndOwner"

	row, err := r.q.GetActiveLinkByTargetAndOwner(ctx, db.GetActiveLinkByTargetAndOwnerParams{
		Target:  target,
		OwnerID: toNullUUID(owner),
	})
	if err != nil {
		return Link{}, mapPgError(op, err)
	}
	out, err := fromPgLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

func (r *pgRepo) IncrementClicks(ctx context.Context, code string) (bool, error) {
	const op = "shortener.repo.IncrementClicks"

	n, err := r.q.IncrementLinkClicks(ctx, code)
	if err != nil {
		return false, mapPgError(op, err)
	}
	return n > 0, nil
}

func (r *pgRepo) DeactivateExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	const op = "shortener.repo.DeactivateExpired"

	n, err := r.q.DeactivateExpiredLink(ctx, db.DeactivateExpiredLinkParams{
		Code: code,
		Now:  toTimestamptz(&now),
	})
	if err != nil {
		return false, mapPgError(op, err)
	}
	return n > 0, nil
}

func (r *pgRepo) DeactivateOwned(ctx context.Context, code string, owner uuid.UUID) (bool, error) {
	const op = "shortener.repo.DeactivateOwned"

	n, err := r.q.DeactivateOwnedLink(ctx, db.DeactivateOwnedLinkParams{
		Code:    code,
		OwnerID: toNullUUID(&owner),
	})
	if err != nil {
		return false, mapPgError(op, err)
	}
	return n > 0, nil
}

func (r *pgRepo) SetExpiresAt(ctx context.Context, code string, owner uuid.UUID, expiresAt *time.Time) (bool, error) {
	const op = "shortener.repo.SetExpiresAt"

	n, err := r.q.SetLinkExpiry(ctx, db.SetLinkExpiryParams{
		Code:      code,
		OwnerID:   toNullUUID(&owner),
		ExpiresAt: toTimestamptz(expiresAt),
	})
	if err != nil {
		return false, mapPgError(op, err)
	}
	return n > 0, nil
}

func (r *pgRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error) {
	const op = "shortener.repo.ListByOwner"

	rows, err := r.q.ListLinksByOwner(ctx, toNullUUID(&owner))
	if err != nil {
		return nil, mapPgError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		l, err := fromPgLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		links = append(links, l)
	}
	return links, nil
}
