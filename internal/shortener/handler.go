package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/httpx"
)

// ShortenHTTPRequest represents the JSON request body for shortening a URL.
type ShortenHTTPRequest struct {
	URL       string `json:"url"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// ShortenResponse represents the JSON response for a shortened URL.
type ShortenResponse struct {
	Code      string     `json:"code"`
	ShortURL  string     `json:"short_url"`
	Target    string     `json:"target"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// StatsResponse is the public view of a link's usage.
type StatsResponse struct {
	Target    string    `json:"target"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkResponse is one entry of an owner's link listing.
type LinkResponse struct {
	Code      string     `json:"code"`
	ShortURL  string     `json:"short_url"`
	Target    string     `json:"target"`
	Clicks    int64      `json:"clicks"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateExpiryRequest represents the JSON body for changing a link's expiry.
type UpdateExpiryRequest struct {
	ExpiresIn string `json:"expires_in"`
}

// OwnerFunc extracts the authenticated owner from a request context.
type OwnerFunc func(ctx context.Context) (uuid.UUID, bool)

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	baseURL      string
	currentOwner OwnerFunc
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service      Service
	Logger       *slog.Logger
	BaseURL      string    // e.g. "https://sho.rt"
	CurrentOwner OwnerFunc // nil treats every request as anonymous
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	owner := cfg.CurrentOwner
	if owner == nil {
		owner = func(context.Context) (uuid.UUID, bool) { return uuid.Nil, false }
	}

	return &Handler{
		service:      cfg.Service,
		logger:       logger,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		currentOwner: owner,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

// Shorten handles POST /api/shorten.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[ShortenHTTPRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	sreq := ShortenRequest{Target: strings.TrimSpace(req.URL), ExpiresIn: req.ExpiresIn}
	if owner, ok := h.currentOwner(ctx); ok {
		sreq.Owner = &owner
	}

	res, err := h.service.Shorten(ctx, sreq)
	if err != nil {
		h.fail(ctx, logger, w, err, "shorten failed")
		return
	}

	logger.InfoContext(ctx, "link shortened",
		"code", res.Link.Code,
		"reused", res.Reused,
		"owned", sreq.Owner != nil,
	)

	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, ShortenResponse{
		Code:      res.Link.Code,
		ShortURL:  h.shortURL(res.Link.Code),
		Target:    res.Link.Target,
		CreatedAt: res.Link.CreatedAt,
		ExpiresAt: res.Link.ExpiresAt,
	})
}

// Resolve handles GET /{code} and redirects visitors to the target.
// Nothing about the visitor is logged.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	target, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.fail(ctx, h.requestLogger(r).With("code", code), w, err, "resolve failed")
		return
	}

	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// Stats handles GET /api/stats/{code}.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	link, err := h.service.Stats(ctx, code)
	if err != nil {
		h.fail(ctx, h.requestLogger(r).With("code", code), w, err, "stats failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, StatsResponse{
		Target:    link.Target,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
	})
}

// ListMine handles GET /api/links.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner, ok := h.currentOwner(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	links, err := h.service.ListByOwner(ctx, owner)
	if err != nil {
		h.fail(ctx, logger, w, err, "list failed")
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, LinkResponse{
			Code:      l.Code,
			ShortURL:  h.shortURL(l.Code),
			Target:    l.Target,
			Clicks:    l.Clicks,
			Active:    l.Active,
			CreatedAt: l.CreatedAt,
			ExpiresAt: l.ExpiresAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/links/{code}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r).With("code", code)

	owner, ok := h.currentOwner(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	if err := h.service.Delete(ctx, code, owner); err != nil {
		h.fail(ctx, logger, w, err, "delete failed")
		return
	}

	logger.InfoContext(ctx, "link deleted")
	httpx.NoContent(w)
}

// UpdateExpiry handles PATCH /api/links/{code}.
func (h *Handler) UpdateExpiry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r).With("code", code)

	owner, ok := h.currentOwner(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	req, err := httpx.DecodeJSON[UpdateExpiryRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := h.service.UpdateExpiry(ctx, code, owner, req.ExpiresIn); err != nil {
		h.fail(ctx, logger, w, err, "update expiry failed")
		return
	}

	logger.InfoContext(ctx, "link expiry updated", "expires_in", req.ExpiresIn)
	httpx.NoContent(w)
}

// fail logs err at a level matching its kind and writes the error response.
// Store failure detail only reaches the log.
func (h *Handler) fail(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.Trace(err),
	}

	switch kind {
	case errx.NotFound, errx.Gone, errx.Invalid, errx.Conflict, errx.Unauthorized, errx.Forbidden:
		logger.WarnContext(ctx, msg, attrs...)
	default:
		if errors.Is(err, ErrAllocationExhausted) {
			msg = "short code space exhausted"
		}
		logger.ErrorContext(ctx, msg, attrs...)
	}
	httpx.WriteKindError(w, err)
}
