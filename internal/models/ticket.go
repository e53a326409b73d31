package models

import "time"

// TicketStatus is the lifecycle state of a negotiation ticket.
type TicketStatus string

const (
	StatusOpen        TicketStatus = "open"
	StatusNegotiating TicketStatus = "negotiating"
	StatusAccepted    TicketStatus = "accepted"
	StatusPaid        TicketStatus = "paid"
	StatusCompleted   TicketStatus = "completed"
	StatusClosed      TicketStatus = "closed"
)

// AISenderID and AISenderName identify messages produced by the AI responder.
const (
	AISenderID   = "AI"
	AISenderName = "Gig Connect AI"
)

// MaxMessageLength bounds human-authored message content.
const MaxMessageLength = 1000

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusNegotiating, StatusAccepted, StatusPaid, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate record of one buyer/seller negotiation over a gig.
// Messages and timeline entries are owned by the ticket and always persisted with it.
type Ticket struct {
	ID          string          `json:"id" bson:"_id"`
	GigID       string          `json:"gigId" bson:"gigId"`
	SellerID    string          `json:"sellerId" bson:"sellerId"`
	BuyerID     string          `json:"buyerId" bson:"buyerId"`
	Status      TicketStatus    `json:"status" bson:"status"`
	AgreedPrice *float64        `json:"agreedPrice" bson:"agreedPrice"`
	Messages    []Message       `json:"messages" bson:"messages"`
	Timeline    []TimelineEntry `json:"timeline" bson:"timeline"`
	Version     int64           `json:"version" bson:"version"`
	CreatedAt   time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Message is a chat entry embedded in a ticket.
type Message struct {
	SenderID   string    `json:"senderId" bson:"senderId"`
	SenderName string    `json:"senderName" bson:"senderName"`
	Content    string    `json:"content" bson:"content"`
	Attachment string    `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Read       bool      `json:"read" bson:"read"`
}

// TimelineEntry is one line of a ticket's append-only audit trail.
type TimelineEntry struct {
	Action    string    `json:"action" bson:"action"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// IsParticipant reports whether userID is the seller or the buyer.
func (t *Ticket) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.SellerID || userID == t.BuyerID)
}

// Counterpart returns the other participant. Callers that are not the buyer
// are treated as the seller side.
func (t *Ticket) Counterpart(userID string) string {
	if userID == t.BuyerID {
		return t.SellerID
	}
	return t.BuyerID
}

// Clone returns a deep copy so stores never share slices with callers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.AgreedPrice != nil {
		p := *t.AgreedPrice
		out.AgreedPrice = &p
	}
	out.Messages = append([]Message(nil), t.Messages...)
	out.Timeline = append([]TimelineEntry(nil), t.Timeline...)
	return &out
}
