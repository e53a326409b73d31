// Package notifications renders ticket events into e-mail and queues them for
// the other participant.
package notifications

import "github.com/gigconnect/gigconnect/internal/models"

// EventKind names the ticket operation that produced a notification.
type EventKind string

const (
	EventMessage          EventKind = "message"
	EventAttachment       EventKind = "attachment"
	EventPriceProposed    EventKind = "price_proposed"
	EventPriceAccepted    EventKind = "price_accepted"
	EventPaymentConfirmed EventKind = "payment_confirmed"
	EventCompleted        EventKind = "completed"
	EventClosed           EventKind = "closed"
	EventAIResponse       EventKind = "ai_response"
)

// Event describes one successful ticket operation. The recipient is the
// participant on the other side of ActorID unless RecipientID is set.
type Event struct {
	Kind        EventKind
	Ticket      *models.Ticket
	ActorID     string
	ActorName   string
	RecipientID string
	Content     string
	Attachment  string
	Rating      *int
}

// Recipient resolves who should hear about the event.
func (e Event) Recipient() string {
	if e.RecipientID != "" {
		return e.RecipientID
	}
	if e.Ticket == nil {
		return ""
	}
	return e.Ticket.Counterpart(e.ActorID)
}
