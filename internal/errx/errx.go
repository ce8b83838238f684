// Package errx tags errors with the operation that produced them and a Kind
// that handlers translate into a response. Layers wrap as they return, so a
// single error carries the whole op chain from handler down to the store.
package errx

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure independently of transport.
type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Invalid
	Unauthorized
	Forbidden
	Unavailable
	Internal
	// Gone marks a resource that existed but has just been retired
	// (for example an expired short link seen for the first time).
	Gone
)

var kindNames = [...]string{
	Unknown:      "Unknown",
	NotFound:     "NotFound",
	Conflict:     "Conflict",
	Invalid:      "Invalid",
	Unauthorized: "Unauthorized",
	Forbidden:    "Forbidden",
	Unavailable:  "Unavailable",
	Internal:     "Internal",
	Gone:         "Gone",
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error is an error annotated with an operation name and a Kind.
type Error struct {
	Op   string // "pkg.layer.Method"
	Kind Kind
	Err  error
}

// E wraps err with op and kind. A nil err yields nil so callers can wrap
// unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// OpOf returns the outermost operation in err's chain.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Trace lists every operation in err's chain, outermost first, joined by
// " > ". Repeated adjacent ops are collapsed.
func Trace(err error) string {
	var ops []string
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		if e.Op != "" && (len(ops) == 0 || ops[len(ops)-1] != e.Op) {
			ops = append(ops, e.Op)
		}
		err = e.Err
	}
	return strings.Join(ops, " > ")
}
