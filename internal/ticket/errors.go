package ticket

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gigconnect/gigconnect/internal/apierrors"
)

// Ticket error codes, registered under the "tickets" namespace.
const (
	CodeInvalidState    = "tickets:invalid_state"
	CodeUpstreamFailure = "tickets:upstream_failure"
)

type errorCodes struct{}

func (errorCodes) EnumerateErrors() []apierrors.ErrorCode {
	return []apierrors.ErrorCode{
		{Code: "invalid_state", Message: "The ticket is not in a state that allows this action", HTTPStatus: http.StatusConflict},
		{Code: "upstream_failure", Message: "An external service failed", HTTPStatus: http.StatusBadGateway},
	}
}

func init() {
	apierrors.Registry.RegisterNamespace("tickets", errorCodes{})
}

var (
	// ErrNotFound means the ticket does not exist.
	ErrNotFound = errors.New("ticket not found")
	// ErrForbidden means the caller is not a participant or has the wrong role.
	ErrForbidden = errors.New("not allowed for this ticket")
	// ErrInvalidState means the status guard of an operation failed.
	ErrInvalidState = errors.New("invalid ticket state")
	// ErrConflict means a save kept losing to concurrent writers.
	ErrConflict = errors.New("ticket was modified concurrently")
)

func invalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// ValidationError lists every failed field constraint.
type ValidationError struct {
	Fields []apierrors.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Fields: []apierrors.FieldError{{Field: field, Message: message}}}
}

// UpstreamError wraps a failure of the storage or AI provider.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ToAPIError maps a service error to its HTTP status and client payload.
// Unknown errors become a generic internal error.
func ToAPIError(err error) (int, apierrors.APIError) {
	var verr *ValidationError
	var uerr *UpstreamError

	var e apierrors.APIError
	switch {
	case errors.As(err, &verr):
		e = apierrors.New(apierrors.CodeValidationFailed)
		e.Details = verr.Fields
	case errors.Is(err, ErrNotFound):
		e = apierrors.NewWithMessage(apierrors.CodeNotFound, "Ticket not found")
	case errors.Is(err, ErrForbidden):
		e = apierrors.New(apierrors.CodeForbidden)
		e.Message = userMessage(err, ErrForbidden, e.Message)
	case errors.Is(err, ErrInvalidState):
		e = apierrors.New(CodeInvalidState)
		e.Message = userMessage(err, ErrInvalidState, e.Message)
	case errors.Is(err, ErrConflict):
		e = apierrors.New(apierrors.CodeConflict)
	case errors.As(err, &uerr):
		e = apierrors.NewWithMessage(CodeUpstreamFailure, uerr.Service+" is unavailable")
	default:
		e = apierrors.New(apierrors.CodeInternalError)
	}
	return apierrors.Registry.HTTPStatus(e.Code), e
}

// userMessage returns the detail a guard attached to a sentinel, which is
// safe to show, or fallback.
func userMessage(err, sentinel error, fallback string) string {
	prefix := sentinel.Error() + ": "
	if msg := err.Error(); strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return fallback
}
