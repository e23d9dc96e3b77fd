package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Sentinel kinds. Every error returned by the review client matches exactly
// one of them under errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("not authenticated")
	ErrForbidden  = errors.New("not permitted")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("temporarily unavailable")

	// ErrNoCredential is wrapped by an AuthError raised before any request
	// was sent.
	ErrNoCredential = errors.New("no credential")
)

// ValidationError is a rejected review body. Fields maps JSON field names to
// messages and may be empty when only a general message is known.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.msg()
	}
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return e.msg() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) msg() string {
	if e.Message == "" {
		return ErrValidation.Error()
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports that the caller already has a review for the coffee.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return ErrConflict.Error()
	}
	return "conflict: " + e.Message
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// AuthError reports a missing, expired or rejected credential. The user has
// to sign in again.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrAuth, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", ErrAuth, e.Message)
	default:
		return ErrAuth.Error()
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// ForbiddenError reports an action the signed-in user may not perform. The
// credential itself is still good.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return ErrForbidden.Error()
	}
	return fmt.Sprintf("%s: %s", ErrForbidden, e.Message)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// NotFoundError reports that the addressed resource does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransientError is a network failure, a server failure or a tripped circuit
// breaker. The operation may succeed if the user tries again.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", ErrTransient, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrTransient, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Kind classifies an error for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindTransient
	KindForbidden
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err. Errors outside the taxonomy are
// KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}
