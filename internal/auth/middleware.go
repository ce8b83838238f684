package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/httpx"
)

// SessionCookie is the cookie carrying the session token for browsers.
const SessionCookie = "session"

type ownerContextKey struct{}

// WithOwner returns a copy of ctx carrying the authenticated user id.
func WithOwner(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, id)
}

// OwnerFromContext returns the authenticated user id, if any.
func OwnerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Authenticate puts the token holder into the request context. Requests
// without a token pass through anonymously. An invalid bearer token is
// rejected; an invalid cookie is ignored so stale browser sessions can still
// follow short links.
func Authenticate(tokens *Tokens) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearer, ok := bearerToken(r); ok {
				id, err := tokens.Verify(bearer)
				if err != nil {
					httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", ErrInvalidToken.Error(), nil)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), id)))
				return
			}

			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				if id, err := tokens.Verify(c.Value); err == nil {
					r = r.WithContext(WithOwner(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner rejects requests that Authenticate did not attach an owner to.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := OwnerFromContext(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
