// Package autherr defines the error taxonomy shared by the authentication,
// session and authorization layers. Callers match with errors.Is and map each
// kind to one HTTP status.
package autherr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyPrivileged  = errors.New("already privileged")
	ErrInternal           = errors.New("internal error")
)

// detailed carries a caller-facing message for one taxonomy kind.
type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string { return e.msg }

func (e *detailed) Is(target error) bool { return target == e.kind }

// WithMessage returns an error of kind whose message is safe to show callers.
func WithMessage(kind error, msg string) error {
	return &detailed{kind: kind, msg: msg}
}

// Validation returns an ErrValidation whose message is safe to show callers.
func Validation(msg string) error {
	return WithMessage(ErrValidation, msg)
}

// AlreadyPrivileged returns an ErrAlreadyPrivileged naming the current role.
func AlreadyPrivileged(role string) error {
	return WithMessage(ErrAlreadyPrivileged, "User is already a "+role)
}

// Status maps err to the HTTP status of its kind; unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAlreadyPrivileged):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text a caller may see. Internal and unknown errors
// collapse to fallback so no store or query detail leaks.
func Message(err error, fallback string) string {
	var d *detailed
	if errors.As(err, &d) {
		return d.msg
	}
	for _, kind := range []error{
		ErrInvalidCredentials, ErrAccountDisabled, ErrUnauthenticated,
		ErrForbidden, ErrNotFound, ErrConflict, ErrValidation,
	} {
		if errors.Is(err, kind) {
			return publicMessages[kind]
		}
	}
	return fallback
}

var publicMessages = map[error]string{
	ErrInvalidCredentials: "Invalid email or password",
	ErrAccountDisabled:    "Account is disabled",
	ErrUnauthenticated:    "Invalid or expired session",
	ErrForbidden:          "Insufficient permissions",
	ErrNotFound:           "Not found",
	ErrConflict:           "Resource already exists",
	ErrValidation:         "Invalid request",
}
