package shortener

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateCode means the code is already taken. The service retries
	// with a fresh code; callers never see it.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrDuplicateTarget means an active link for the same target and owner
	// already exists.
	ErrDuplicateTarget = errors.New("active link for target already exists")

	// ErrAllocationExhausted means every attempt to allocate a code collided.
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")

	// ErrUnknownOwner means the owner id on a new link matches no account,
	// as happens with a session minted before its user row was removed.
	ErrUnknownOwner = errors.New("link owner does not exist")

	ErrLinkNotFound = errors.New("link not found")
	ErrLinkExpired  = errors.New("link has expired")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	constraintCodeUnique        = "links_code_unique"
	constraintActiveTargetOwner = "links_active_target_owner"
	constraintOwnerForeignKey   = "links_owner_id_fkey"
)

func pgUniqueConstraint(err error) (string, bool) {
	return pgConstraint(err, pgUniqueViolation)
}

func pgForeignKeyConstraint(err error) (string, bool) {
	return pgConstraint(err, pgForeignKeyViolation)
}

func pgConstraint(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return "", false
	}
	return pgErr.ConstraintName, true
}
