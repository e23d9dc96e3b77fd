package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels classify failures independently of their message.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// statusOf is consulted in order; the first sentinel err matches wins.
var statusOf = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
}

// AppError is a failure with a stable code, a client-facing message and the
// HTTP status it is reported with. Fields carries per-field messages for
// input errors.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(code string, sentinel error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  HTTPStatus(sentinel),
		Err:     sentinel,
	}
}

// NotFound reports that resource id does not exist.
func NotFound(resource, id string) *AppError {
	return newError("NOT_FOUND", ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return newError("ALREADY_EXISTS", ErrAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// Conflict reports a state conflict not tied to a single unique field.
func Conflict(message string) *AppError {
	return newError("CONFLICT", ErrConflict, message)
}

// InvalidInput reports a rejected request body or query.
func InvalidInput(message string) *AppError {
	return newError("INVALID_INPUT", ErrInvalidInput, message)
}

// InvalidFields reports input rejected field by field.
func InvalidFields(message string, fields map[string]string) *AppError {
	e := newError("VALIDATION_ERROR", ErrInvalidInput, message)
	e.Fields = fields
	return e
}

func Unauthorized(message string) *AppError {
	return newError("UNAUTHORIZED", ErrUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newError("FORBIDDEN", ErrForbidden, message)
}

// HTTPStatus returns the HTTP status err is reported with. Unclassified
// errors are 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	for _, s := range statusOf {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
