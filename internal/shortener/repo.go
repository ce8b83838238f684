package shortener

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the durable link store. Implementations enforce code
// uniqueness and ownership inside single statements; no operation is built
// from a read followed by a dependent write.
//
// Errors are *errx.Error values: NotFound for missing rows, Conflict wrapping
// ErrDuplicateCode or ErrDuplicateTarget on insert races, Unavailable for
// storage failures.
type Repository interface {
	// Insert creates an active link, failing on a taken code or an existing
	// active link for the same target and owner.
	Insert(ctx context.Context, link NewLink) (Link, error)

	// FindByCode returns the link for code in any lifecycle state.
	FindByCode(ctx context.Context, code string) (Link, error)

	// FindActiveByTargetAndOwner returns the active link for target owned by
	// owner, or the active anonymous link when owner is nil.
	FindActiveByTargetAndOwner(ctx context.Context, target string, owner *uuid.UUID) (Link, error)

	// IncrementClicks adds one click to an active link and reports whether a
	// row was updated.
	IncrementClicks(ctx context.Context, code string) (bool, error)

	// DeactivateExpired marks an active link inactive if its expiry is set
	// and strictly before now. Only the call that performs the transition
	// gets true; a link whose expiry was extended or cleared is left alone.
	DeactivateExpired(ctx context.Context, code string, now time.Time) (bool, error)

	// DeactivateOwned marks an active link owned by owner inactive.
	DeactivateOwned(ctx context.Context, code string, owner uuid.UUID) (bool, error)

	// SetExpiresAt replaces the expiry of an active link owned by owner.
	// A nil expiresAt clears it.
	SetExpiresAt(ctx context.Context, code string, owner uuid.UUID, expiresAt *time.Time) (bool, error)

	// ListByOwner returns every link owned by owner, newest first.
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error)
}
