package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to its target URL.
//
// Code and Target never change after creation. Active only ever moves from
// true to false, either by owner deletion or by lazy expiry detection.
type Link struct {
	ID        uuid.UUID
	Code      string
	Target    string
	OwnerID   *uuid.UUID // nil for anonymous links
	Clicks    int64
	Active    bool
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means the link never expires
}

// Owned reports whether the link belongs to owner.
func (l Link) Owned(owner uuid.UUID) bool {
	return l.OwnerID != nil && *l.OwnerID == owner
}

// NewLink holds the fields supplied when inserting a link.
type NewLink struct {
	Code      string
	Target    string
	OwnerID   *uuid.UUID
	CreatedAt time.Time
	ExpiresAt *time.Time
}
