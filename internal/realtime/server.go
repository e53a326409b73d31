package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/middleware"
	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/ticket"
)

// Client events.
const (
	EventJoinTicket  = "joinTicket"
	EventSendMessage = "sendMessage"
	EventAck         = "ack"
	EventError       = "error"
)

// Tickets is the part of the ticket service the socket needs.
type Tickets interface {
	CanJoin(ctx context.Context, id string, actor ticket.Actor) error
	SendMessage(ctx context.Context, id string, actor ticket.Actor, content string) (*models.Ticket, error)
}

// frame is the wire envelope in both directions.
type frame struct {
	Event string      `json:"event"`
	Ack   *int64      `json:"ack,omitempty"`
	Data  interface{} `json:"data"`
}

type inbound struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

type ackData struct {
	OK     bool                `json:"ok"`
	Ticket *models.Ticket      `json:"ticket,omitempty"`
	Error  *apierrors.APIError `json:"error,omitempty"`
}

type Server struct {
	hub       *Hub
	tickets   Tickets
	validator middleware.TokenValidator
	limiter   middleware.Limiter
	rule      middleware.RateRule
	upgrader  websocket.Upgrader
	buffer    int
	logger    *log.Logger
}

// NewServer builds the websocket endpoint. limiter may be nil to disable the
// per-user message limit.
func NewServer(hub *Hub, tickets Tickets, validator middleware.TokenValidator, limiter middleware.Limiter, rule middleware.RateRule) *Server {
	return &Server{
		hub:       hub,
		tickets:   tickets,
		validator: validator,
		limiter:   limiter,
		rule:      rule,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Sockets authenticate with a bearer token, never a cookie.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		buffer: sendBuffer,
		logger: hub.logger,
	}
}

// Handle authenticates the caller and upgrades the connection.
func (s *Server) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if parts := strings.Fields(c.GetHeader("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		apierrors.Error(c, apierrors.CodeUnauthorized)
		return
	}
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInvalidToken)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("Upgrade failed for %s: %v", claims.UserID, err)
		return
	}

	cl := newClient(conn, ticket.Actor{ID: claims.UserID, Name: claims.Name}, s.buffer)
	go cl.writePump()

	// The request context ends with the handler, not with the socket.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()
	s.readPump(ctx, cl)
}

func (s *Server) readPump(ctx context.Context, c *client) {
	defer func() {
		s.hub.leave(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("Connection of %s closed: %v", c.actor.ID, err)
			}
			return
		}
		s.dispatch(ctx, c, raw)
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, raw []byte) {
	if errs := validate(envelopeSchema, raw); len(errs) > 0 {
		s.reply(c, peekAck(raw), validationAck(errs))
		return
	}
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.reply(c, nil, validationAck([]apierrors.FieldError{{Field: "(root)", Message: "invalid JSON"}}))
		return
	}

	switch in.Event {
	case EventJoinTicket:
		s.reply(c, in.Ack, s.joinTicket(ctx, c, in.Data))
	case EventSendMessage:
		s.reply(c, in.Ack, s.sendMessage(ctx, c, in.Data))
	}
}

func (s *Server) joinTicket(ctx context.Context, c *client, data json.RawMessage) ackData {
	if errs := validate(joinTicketSchema, data); len(errs) > 0 {
		return validationAck(errs)
	}
	var req struct {
		TicketID string `json:"ticketId"`
	}
	_ = json.Unmarshal(data, &req)

	if err := s.tickets.CanJoin(ctx, req.TicketID, c.actor); err != nil {
		return s.errorAck(err, c, req.TicketID)
	}
	s.hub.join(req.TicketID, c)
	return ackData{OK: true}
}

func (s *Server) sendMessage(ctx context.Context, c *client, data json.RawMessage) ackData {
	if errs := validate(sendMessageSchema, data); len(errs) > 0 {
		return validationAck(errs)
	}
	var req struct {
		TicketID string `json:"ticketId"`
		Content  string `json:"content"`
	}
	_ = json.Unmarshal(data, &req)

	if s.limiter != nil {
		// Same key as the REST route so both surfaces share one budget.
		decision, err := s.limiter.Allow(ctx, "ratelimit:messages:"+c.actor.ID, s.rule)
		if err != nil {
			s.logger.Printf("Rate limit check failed for %s, allowing: %v", c.actor.ID, err)
		} else if !decision.Allowed {
			e := apierrors.New(apierrors.CodeRateLimited)
			return ackData{Error: &e}
		}
	}

	t, err := s.tickets.SendMessage(ticket.WithChannel(ctx, ticket.ChannelRealtime), req.TicketID, c.actor, req.Content)
	if err != nil {
		return s.errorAck(err, c, req.TicketID)
	}
	return ackData{OK: true, Ticket: t}
}

func (s *Server) errorAck(err error, c *client, ticketID string) ackData {
	status, e := ticket.ToAPIError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("Ticket %s failed for %s: %v", ticketID, c.actor.ID, err)
	}
	return ackData{Error: &e}
}

// reply sends an ack when the client asked for one and an error event
// otherwise. Successful events without an ack id get no reply.
func (s *Server) reply(c *client, ack *int64, data ackData) {
	var f frame
	switch {
	case ack != nil:
		f = frame{Event: EventAck, Ack: ack, Data: data}
	case !data.OK:
		f = frame{Event: EventError, Data: data.Error}
	default:
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		s.logger.Printf("Failed to encode reply: %v", err)
		return
	}
	if !c.enqueue(payload) {
		s.hub.leave(c)
		c.close()
	}
}

func validationAck(fields []apierrors.FieldError) ackData {
	e := apierrors.New(apierrors.CodeValidationFailed)
	e.Details = fields
	return ackData{Error: &e}
}

// peekAck recovers the ack id from a frame that failed validation.
func peekAck(raw []byte) *int64 {
	var envelope struct {
		Ack *int64 `json:"ack"`
	}
	if json.Unmarshal(raw, &envelope) != nil {
		return nil
	}
	return envelope.Ack
}
