// Package apierrors provides structured API error codes and responses.
// Codes are namespaced, e.g. "core:unauthorized" or "tickets:invalid_state".
package apierrors

import "net/http"

const (
	// Caller identity.
	CodeUnauthorized = "core:unauthorized"
	CodeInvalidToken = "core:invalid_token"
	CodeTokenExpired = "core:token_expired"
	CodeForbidden    = "core:forbidden"

	// Request shape.
	CodeInvalidRequest   = "core:invalid_request"
	CodeValidationFailed = "core:validation_failed"
	CodePayloadTooLarge  = "core:payload_too_large"
	CodeRateLimited      = "core:rate_limited"

	// Ticket lookup and persistence.
	CodeNotFound      = "core:not_found"
	CodeConflict      = "core:conflict"
	CodeInternalError = "core:internal_error"
)

func init() {
	Registry.Register(
		ErrorCode{Code: CodeUnauthorized, Message: "Sign in to continue", HTTPStatus: http.StatusUnauthorized},
		ErrorCode{Code: CodeInvalidToken, Message: "Bearer token is invalid", HTTPStatus: http.StatusUnauthorized},
		ErrorCode{Code: CodeTokenExpired, Message: "Bearer token has expired", HTTPStatus: http.StatusUnauthorized},
		ErrorCode{Code: CodeForbidden, Message: "You are not a participant of this ticket", HTTPStatus: http.StatusForbidden},
		ErrorCode{Code: CodeInvalidRequest, Message: "Request body could not be read", HTTPStatus: http.StatusBadRequest},
		ErrorCode{Code: CodeValidationFailed, Message: "Some fields are invalid", HTTPStatus: http.StatusBadRequest},
		ErrorCode{Code: CodePayloadTooLarge, Message: "Attachment exceeds the upload limit", HTTPStatus: http.StatusRequestEntityTooLarge},
		ErrorCode{Code: CodeRateLimited, Message: "Slow down and try again shortly", HTTPStatus: http.StatusTooManyRequests},
		ErrorCode{Code: CodeNotFound, Message: "Ticket not found", HTTPStatus: http.StatusNotFound},
		ErrorCode{Code: CodeConflict, Message: "Ticket changed while saving, retry the request", HTTPStatus: http.StatusConflict},
		ErrorCode{Code: CodeInternalError, Message: "Something went wrong", HTTPStatus: http.StatusInternalServerError},
	)
}
