package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/middleware"
	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/ticket"
)

var logger = log.New(log.Writer(), "[API] ", log.LstdFlags)

// actor returns the authenticated caller. BearerAuth guarantees the claims.
func actor(c *gin.Context) ticket.Actor {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return ticket.Actor{}
	}
	return ticket.Actor{ID: claims.UserID, Name: claims.Name}
}

func respondTicket(c *gin.Context, t *models.Ticket) {
	c.JSON(http.StatusOK, gin.H{"success": true, "ticket": t})
}

// respondError maps a service error to the JSON error body. Server-side
// failures are logged with the request context and hidden from the client.
func respondError(c *gin.Context, err error) {
	status, body := ticket.ToAPIError(err)
	if status >= http.StatusInternalServerError {
		logger.Printf("%s %s ticket=%s user=%s: %v",
			c.Request.Method, c.FullPath(), c.Param("id"), c.GetString(middleware.ContextUserID), err)
	}
	c.JSON(status, gin.H{"error": body})
}

func fieldErrors(field, message string) []apierrors.FieldError {
	return []apierrors.FieldError{{Field: field, Message: message}}
}
