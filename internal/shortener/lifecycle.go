package shortener

import "time"

// Outcome is the result of evaluating a link for a redirect.
type Outcome uint8

const (
	OutcomeNotFound Outcome = iota
	OutcomeGone
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGone:
		return "gone"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "not_found"
	}
}

// IsExpired reports whether link has an expiry strictly before now.
func IsExpired(link Link, now time.Time) bool {
	return link.ExpiresAt != nil && now.After(*link.ExpiresAt)
}

// ResolveOutcome decides what a visitor of link gets at now. A nil or
// inactive link is NotFound regardless of its expiry. An active link past its
// expiry is Gone and the caller must deactivate it; expiry is only ever
// discovered here, never by a background sweep.
func ResolveOutcome(link *Link, now time.Time) Outcome {
	if link == nil || !link.Active {
		return OutcomeNotFound
	}
	if IsExpired(*link, now) {
		return OutcomeGone
	}
	return OutcomeRedirect
}
