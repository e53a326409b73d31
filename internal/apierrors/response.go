package apierrors

import (
	"github.com/gin-gonic/gin"
)

// FieldError itemizes one failed field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the JSON error body.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error sends the registered status and default message for code.
func Error(c *gin.Context, code string) {
	c.JSON(Registry.HTTPStatus(code), gin.H{"error": New(code)})
}

// ErrorWithMessage sends the registered status for code with a custom message.
func ErrorWithMessage(c *gin.Context, code, message string) {
	c.JSON(Registry.HTTPStatus(code), gin.H{"error": NewWithMessage(code, message)})
}

// ValidationError sends a validation failure listing every field error.
func ValidationError(c *gin.Context, details []FieldError) {
	e := New(CodeValidationFailed)
	e.Details = details
	c.JSON(Registry.HTTPStatus(CodeValidationFailed), gin.H{"error": e})
}

// New builds an APIError without sending it.
func New(code string) APIError {
	return APIError{Code: code, Message: Registry.Message(code)}
}

// NewWithMessage builds an APIError with a custom message.
func NewWithMessage(code, message string) APIError {
	return APIError{Code: code, Message: message}
}
