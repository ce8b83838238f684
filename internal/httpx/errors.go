package httpx

import (
	"errors"
	"net/http"

	"github.com/sundayezeilo/shortly/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Handlers can use this as a helper when mapping their own errors.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unauthorized:
		return http.StatusUnauthorized
	case errx.Forbidden:
		return http.StatusForbidden
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	case errx.Gone:
		return http.StatusGone
	case errx.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client for err.
// Server-side kinds never echo the underlying error text.
func PublicMessage(err error) string {
	switch errx.KindOf(err) {
	case errx.Invalid, errx.Conflict:
		return rootMessage(err)
	case errx.NotFound:
		return "resource not found"
	case errx.Gone:
		return "resource is no longer available"
	case errx.Unauthorized:
		return "authentication required"
	case errx.Forbidden:
		return "access denied"
	case errx.Unavailable:
		return "service temporarily unavailable, please try again"
	default:
		return "unable to process the request"
	}
}

// rootMessage unwraps errx layers and returns the innermost message.
func rootMessage(err error) string {
	for {
		var e *errx.Error
		if !errors.As(err, &e) || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}

// WriteKindError writes err using its kind for status, code and message.
func WriteKindError(w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), PublicMessage(err), nil)
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
// Handlers can use this as a helper when mapping their own errors.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unauthorized:
		return "unauthorized"
	case errx.Forbidden:
		return "forbidden"
	case errx.Unavailable:
		return "unavailable"
	case errx.Gone:
		return "gone"
	case errx.Internal:
		return "internal_error"
	default:
		return "internal_error"
	}
}
