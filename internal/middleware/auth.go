package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/auth"
)

// Context keys set by BearerAuth.
const (
	ContextUserID   = "user_id"
	ContextUserName = "user_name"
	ContextClaims   = "claims"
)

// TokenValidator verifies bearer tokens. *auth.JWTManager satisfies it.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// BearerAuth rejects requests without a valid bearer token and stores the
// caller identity on the context.
func BearerAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			apierrors.Error(c, apierrors.CodeUnauthorized)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			debugLog("auth: token rejected for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			if errors.Is(err, auth.ErrTokenExpired) {
				apierrors.Error(c, apierrors.CodeTokenExpired)
			} else {
				apierrors.Error(c, apierrors.CodeInvalidToken)
			}
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, claims.Name)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// CurrentUser returns the claims stored by BearerAuth.
func CurrentUser(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// ExtractToken reads the token from the Authorization header, then the
// auth_token cookie.
func ExtractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if cookie, err := c.Cookie("auth_token"); err == nil && cookie != "" {
		return cookie
	}
	return ""
}
