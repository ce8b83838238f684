package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/httpx"
)

// RegisterRequest represents the JSON body for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the JSON body for logging in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the session token for API clients.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// Handler provides HTTP handlers for accounts and sessions.
type Handler struct {
	service      Service
	logger       *slog.Logger
	secureCookie bool
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service      Service
	Logger       *slog.Logger
	SecureCookie bool // set the Secure flag on the session cookie
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:      cfg.Service,
		logger:       logger,
		secureCookie: cfg.SecureCookie,
	}
}

func toUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[RegisterRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	user, err := h.service.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(ctx, logger, w, err, "register failed")
		return
	}

	logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /api/auth/login. The token is returned in the body and
// also set as an HttpOnly session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[LoginRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	session, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.fail(ctx, logger, w, err, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	logger.InfoContext(ctx, "user logged in", "user_id", session.User.ID.String())
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(session.User),
	})
}

// Logout handles POST /api/auth/logout by expiring the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.NoContent(w)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := OwnerFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	user, err := h.service.UserByID(ctx, id)
	if errx.KindOf(err) == errx.NotFound {
		// Token outlived its account.
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	if err != nil {
		h.fail(ctx, h.requestLogger(r), w, err, "load current user failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) fail(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.Trace(err),
	}
	switch kind {
	case errx.Invalid, errx.Conflict, errx.Unauthorized, errx.NotFound:
		logger.WarnContext(ctx, msg, attrs...)
	default:
		logger.ErrorContext(ctx, msg, attrs...)
	}

	if kind == errx.Unauthorized {
		// Never reveal which half of the credentials was wrong.
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", ErrInvalidCredentials.Error(), nil)
		return
	}
	httpx.WriteKindError(w, err)
}
