package shortener

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/sluggen"
)

const (
	DefaultCodeLength  = sluggen.DefaultLength
	MinCodeLength      = 4
	MaxCodeLength      = 32
	MaxURLLength       = 2048
	DefaultMaxAttempts = 10
)

// DefaultReservedCodes are path segments the HTTP layer serves itself.
var DefaultReservedCodes = []string{
	"api", "auth", "static", "assets", "public", "healthz", "favicon",
	"robots", "index", "login", "logout", "register", "stats", "links",
}

// ShortenRequest represents the parameters for shortening a URL.
type ShortenRequest struct {
	Target    string
	Owner     *uuid.UUID // nil for anonymous requests
	ExpiresIn string     // ignored for anonymous requests
}

// ShortenResult is the link handed back by Shorten. Reused is set when an
// existing active link for the same target and owner was returned.
type ShortenResult struct {
	Link   Link
	Reused bool
}

// Service defines the link operations exposed to the HTTP layer.
type Service interface {
	Shorten(ctx context.Context, req ShortenRequest) (ShortenResult, error)
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context, code string) (Link, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error)
	Delete(ctx context.Context, code string, owner uuid.UUID) error
	UpdateExpiry(ctx context.Context, code string, owner uuid.UUID, expiresIn string) error
}

type service struct {
	repo        Repository
	codes       sluggen.Generator
	codeLength  int
	maxAttempts int
	reserved    map[string]struct{}
	now         func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator sluggen.Generator
	CodeLength    int
	MaxAttempts   int      // code allocation attempts before giving up (default: 10)
	ReservedCodes []string // default: DefaultReservedCodes
	Clock         func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = sluggen.NewURLSafe()
	}

	length := config.CodeLength
	if length < MinCodeLength || length > MaxCodeLength {
		length = DefaultCodeLength
	}

	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	words := config.ReservedCodes
	if words == nil {
		words = DefaultReservedCodes
	}
	reserved := make(map[string]struct{}, len(words))
	for _, w := range words {
		reserved[strings.ToLower(w)] = struct{}{}
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &service{
		repo:        repo,
		codes:       codes,
		codeLength:  length,
		maxAttempts: attempts,
		reserved:    reserved,
		now:         func() time.Time { return clock().UTC() },
	}
}

// Shorten returns the active link for the request's target and owner,
// creating one with a fresh code when none exists.
func (s *service) Shorten(ctx context.Context, req ShortenRequest) (ShortenResult, error) {
	const op = "shortener.service.Shorten"

	if err := validateURL(req.Target); err != nil {
		return ShortenResult{}, errx.E(op, errx.Invalid, err)
	}

	now := s.now()
	var expiresAt *time.Time
	if req.Owner != nil {
		at, err := ExpiresAt(req.ExpiresIn, now)
		if err != nil {
			return ShortenResult{}, errx.E(op, errx.Invalid, err)
		}
		expiresAt = at
	}

	existing, ok, err := s.reusable(ctx, req.Target, req.Owner, now)
	if err != nil {
		return ShortenResult{}, errx.E(op, errx.KindOf(err), err)
	}
	if ok {
		return ShortenResult{Link: existing, Reused: true}, nil
	}

	for range s.maxAttempts {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return ShortenResult{}, errx.E(op, errx.Internal, err)
		}
		if s.isReserved(code) {
			continue
		}

		created, err := s.repo.Insert(ctx, NewLink{
			Code:      code,
			Target:    req.Target,
			OwnerID:   req.Owner,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
		switch {
		case err == nil:
			return ShortenResult{Link: created}, nil

		case errors.Is(err, ErrDuplicateCode):
			continue

		case errors.Is(err, ErrDuplicateTarget):
			// A concurrent request for the same pair inserted first.
			winner, ok, err := s.reusable(ctx, req.Target, req.Owner, now)
			if err != nil {
				return ShortenResult{}, errx.E(op, errx.KindOf(err), err)
			}
			if ok {
				return ShortenResult{Link: winner, Reused: true}, nil
			}

		default:
			return ShortenResult{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return ShortenResult{}, errx.E(op, errx.Internal, ErrAllocationExhausted)
}

// reusable looks up the active link for target and owner. A match that is
// already past its expiry is retired and not reused, unless its expiry was
// moved forward before the retire landed.
func (s *service) reusable(ctx context.Context, target string, owner *uuid.UUID, now time.Time) (Link, bool, error) {
	link, err := s.repo.FindActiveByTargetAndOwner(ctx, target, owner)
	if errx.KindOf(err) == errx.NotFound {
		return Link{}, false, nil
	}
	if err != nil {
		return Link{}, false, err
	}
	if !IsExpired(link, now) {
		return link, true, nil
	}
	retired, err := s.repo.DeactivateExpired(ctx, link.Code, now)
	if err != nil {
		return Link{}, false, err
	}
	if retired {
		return Link{}, false, nil
	}

	// The expiry moved or another caller retired the link first.
	link, err = s.repo.FindActiveByTargetAndOwner(ctx, target, owner)
	if errx.KindOf(err) == errx.NotFound {
		return Link{}, false, nil
	}
	if err != nil {
		return Link{}, false, err
	}
	if IsExpired(link, now) {
		return Link{}, false, nil
	}
	return link, true, nil
}

func (s *service) isReserved(code string) bool {
	_, ok := s.reserved[strings.ToLower(code)]
	return ok
}

// resolveAttempts bounds how often Resolve re-reads a link whose expiry
// changed while it was being retired.
const resolveAttempts = 3

// Resolve returns the target for code and counts the visit. An expired link
// yields Gone exactly once, to the resolver that deactivates it; everyone
// after that gets NotFound. The deactivation only applies while the stored
// expiry is still in the past, so an owner extending or clearing it in the
// meantime wins and the visit is evaluated again.
func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "shortener.service.Resolve"

	if !validCode(code) {
		return "", errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	for range resolveAttempts {
		var found *Link
		link, err := s.repo.FindByCode(ctx, code)
		switch {
		case err == nil:
			found = &link
		case errx.KindOf(err) != errx.NotFound:
			return "", errx.E(op, errx.KindOf(err), err)
		}

		now := s.now()
		switch ResolveOutcome(found, now) {
		case OutcomeRedirect:
			counted, err := s.repo.IncrementClicks(ctx, code)
			if err != nil {
				return "", errx.E(op, errx.KindOf(err), err)
			}
			if !counted {
				return "", errx.E(op, errx.NotFound, ErrLinkNotFound)
			}
			return found.Target, nil

		case OutcomeGone:
			retired, err := s.repo.DeactivateExpired(ctx, code, now)
			if err != nil {
				return "", errx.E(op, errx.KindOf(err), err)
			}
			if retired {
				return "", errx.E(op, errx.Gone, ErrLinkExpired)
			}
			// Retired by someone else or no longer expired; look again.

		default:
			return "", errx.E(op, errx.NotFound, ErrLinkNotFound)
		}
	}
	return "", errx.E(op, errx.NotFound, ErrLinkNotFound)
}

// Stats returns the link for code in any lifecycle state.
func (s *service) Stats(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Stats"

	if !validCode(code) {
		return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error) {
	const op = "shortener.service.ListByOwner"

	links, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// Delete deactivates a link owned by owner. Unknown, inactive and foreign
// codes are all NotFound.
func (s *service) Delete(ctx context.Context, code string, owner uuid.UUID) error {
	const op = "shortener.service.Delete"

	if !validCode(code) {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	ok, err := s.repo.DeactivateOwned(ctx, code, owner)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if !ok {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return nil
}

// UpdateExpiry recomputes the expiry of an owned link from now. "never" or
// an empty option clears it.
func (s *service) UpdateExpiry(ctx context.Context, code string, owner uuid.UUID, expiresIn string) error {
	const op = "shortener.service.UpdateExpiry"

	expiresAt, err := ExpiresAt(expiresIn, s.now())
	if err != nil {
		return errx.E(op, errx.Invalid, err)
	}
	if !validCode(code) {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	ok, err := s.repo.SetExpiresAt(ctx, code, owner, expiresAt)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if !ok {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return nil
}

func validCode(code string) bool {
	return len(code) <= MaxCodeLength && sluggen.Valid(code)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
