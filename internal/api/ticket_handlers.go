package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/ticket"
)

// TicketService is the negotiation workflow as seen by the HTTP layer.
type TicketService interface {
	List(ctx context.Context, actor ticket.Actor) ([]*models.Ticket, error)
	Get(ctx context.Context, id string, actor ticket.Actor) (*models.Ticket, error)
	Timeline(ctx context.Context, id string, actor ticket.Actor) ([]models.TimelineEntry, error)
	Search(ctx context.Context, id string, actor ticket.Actor, query string) ([]models.Message, error)
	Debug(ctx context.Context, id string) (*models.Ticket, error)
	SendMessage(ctx context.Context, id string, actor ticket.Actor, content string) (*models.Ticket, error)
	SendAttachment(ctx context.Context, id string, actor ticket.Actor, content string, upload *ticket.Upload) (*models.Ticket, error)
	ProposePrice(ctx context.Context, id string, actor ticket.Actor, price float64) (*models.Ticket, error)
	AcceptPrice(ctx context.Context, id string, actor ticket.Actor) (*models.Ticket, error)
	ConfirmPayment(ctx context.Context, id string, actor ticket.Actor) (*models.Ticket, error)
	Complete(ctx context.Context, id string, actor ticket.Actor) (*models.Ticket, error)
	Close(ctx context.Context, id string, actor ticket.Actor, rating *int) (*models.Ticket, error)
	MarkRead(ctx context.Context, id string, actor ticket.Actor) (*models.Ticket, error)
	AIResponse(ctx context.Context, id string, actor ticket.Actor, content string) (*models.Ticket, error)
}

type ticketHandlers struct {
	svc       TicketService
	maxUpload int64
}

type contentRequest struct {
	Content string `json:"content"`
}

type priceRequest struct {
	Price *float64 `json:"price"`
}

type closeRequest struct {
	Rating *int `json:"rating"`
}

// bindJSON decodes an optional JSON body. It writes the 400 itself and
// reports false on malformed input.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return false
	}
	return true
}

// list handles GET /api/tickets.
func (h *ticketHandlers) list(c *gin.Context) {
	tickets, err := h.svc.List(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *ticketHandlers) get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

func (h *ticketHandlers) timeline(c *gin.Context) {
	entries, err := h.svc.Timeline(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

func (h *ticketHandlers) search(c *gin.Context) {
	messages, err := h.svc.Search(c.Request.Context(), c.Param("id"), actor(c), c.Query("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ticketHandlers) sendMessage(c *gin.Context) {
	var req contentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := ticket.WithChannel(c.Request.Context(), ticket.ChannelREST)
	h.respond(c)(h.svc.SendMessage(ctx, c.Param("id"), actor(c), req.Content))
}

func (h *ticketHandlers) sendAttachment(c *gin.Context) {
	form, err := parseAttachmentForm(c, h.maxUpload)
	if errors.Is(err, errFileTooLarge) {
		apierrors.Error(c, apierrors.CodePayloadTooLarge)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer form.Close()

	ctx := ticket.WithChannel(c.Request.Context(), ticket.ChannelREST)
	h.respond(c)(h.svc.SendAttachment(ctx, c.Param("id"), actor(c), form.content, form.upload))
}

func (h *ticketHandlers) proposePrice(c *gin.Context) {
	var req priceRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Price == nil {
		apierrors.ValidationError(c, fieldErrors("price", "is required"))
		return
	}
	h.respond(c)(h.svc.ProposePrice(c.Request.Context(), c.Param("id"), actor(c), *req.Price))
}

func (h *ticketHandlers) acceptPrice(c *gin.Context) {
	h.respond(c)(h.svc.AcceptPrice(c.Request.Context(), c.Param("id"), actor(c)))
}

func (h *ticketHandlers) pay(c *gin.Context) {
	h.respond(c)(h.svc.ConfirmPayment(c.Request.Context(), c.Param("id"), actor(c)))
}

func (h *ticketHandlers) complete(c *gin.Context) {
	h.respond(c)(h.svc.Complete(c.Request.Context(), c.Param("id"), actor(c)))
}

func (h *ticketHandlers) close(c *gin.Context) {
	var req closeRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.svc.Close(c.Request.Context(), c.Param("id"), actor(c), req.Rating))
}

func (h *ticketHandlers) markRead(c *gin.Context) {
	h.respond(c)(h.svc.MarkRead(c.Request.Context(), c.Param("id"), actor(c)))
}

func (h *ticketHandlers) aiResponse(c *gin.Context) {
	var req contentRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.svc.AIResponse(c.Request.Context(), c.Param("id"), actor(c), req.Content))
}

// debug handles GET /api/debug/tickets/:id. It is unauthenticated.
func (h *ticketHandlers) debug(c *gin.Context) {
	t, err := h.svc.Debug(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// respond returns a sink for the (ticket, error) pair of a mutation.
func (h *ticketHandlers) respond(c *gin.Context) func(*models.Ticket, error) {
	return func(t *models.Ticket, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondTicket(c, t)
	}
}
