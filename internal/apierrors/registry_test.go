package apierrors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreCodesStatus(t *testing.T) {
	tests := map[string]int{
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeInvalidToken:     http.StatusUnauthorized,
		CodeForbidden:        http.StatusForbidden,
		CodeNotFound:         http.StatusNotFound,
		CodeConflict:         http.StatusConflict,
		CodeValidationFailed: http.StatusBadRequest,
		CodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodeInternalError:    http.StatusInternalServerError,
	}
	for code, status := range tests {
		t.Run(code, func(t *testing.T) {
			_, ok := Registry.Get(code)
			require.True(t, ok)
			assert.Equal(t, status, Registry.HTTPStatus(code))
		})
	}

	for _, e := range Registry.ByNamespace("core") {
		assert.Equal(t, "core", e.Namespace())
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	r := NewCodeRegistry()
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus("payments:declined"))
	assert.Equal(t, "payments:declined", r.Message("payments:declined"))
	assert.Equal(t, "core", ErrorCode{Code: "bare"}.Namespace())
}

type offerCodes []ErrorCode

func (o offerCodes) EnumerateErrors() []ErrorCode { return o }

func TestRegisterNamespaceKeepsOrderAndReplaces(t *testing.T) {
	r := NewCodeRegistry()
	r.RegisterNamespace("offers", offerCodes{
		{Code: "expired", Message: "Offer expired", HTTPStatus: http.StatusGone},
		{Code: "declined", Message: "Offer declined", HTTPStatus: http.StatusConflict},
	})
	r.RegisterNamespace("offers", offerCodes{
		{Code: "expired", Message: "Offer is no longer valid", HTTPStatus: http.StatusGone},
	})

	codes := r.ByNamespace("offers")
	require.Len(t, codes, 2)
	assert.Equal(t, "offers:expired", codes[0].Code)
	assert.Equal(t, "Offer is no longer valid", codes[0].Message)
	assert.Equal(t, "offers:declined", codes[1].Code)
}

func TestValidationErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ValidationError(c, []FieldError{{Field: "price", Message: "must be positive"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeValidationFailed, body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "price", body.Error.Details[0].Field)
}
