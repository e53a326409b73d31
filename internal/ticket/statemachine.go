package ticket

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/gigconnect/gigconnect/internal/models"
)

// transitions lists every status edge a ticket may take. Staying in the same
// status is always allowed.
var transitions = map[models.TicketStatus][]models.TicketStatus{
	models.StatusOpen:        {models.StatusNegotiating},
	models.StatusNegotiating: {models.StatusAccepted},
	models.StatusAccepted:    {models.StatusPaid},
	models.StatusPaid:        {models.StatusCompleted},
	models.StatusCompleted:   {models.StatusClosed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.TicketStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func setStatus(t *models.Ticket, to models.TicketStatus) error {
	if !CanTransition(t.Status, to) {
		return invalidState("cannot move from %s to %s", t.Status, to)
	}
	t.Status = to
	return nil
}

// guardParticipant admits only the seller or the buyer.
func guardParticipant(t *models.Ticket, actorID string) error {
	if !t.IsParticipant(actorID) {
		return forbidden("you are not a participant of this ticket")
	}
	return nil
}

func guardBuyer(t *models.Ticket, actorID string) error {
	if actorID != t.BuyerID {
		return forbidden("only the buyer can do this")
	}
	return nil
}

func guardSeller(t *models.Ticket, actorID string) error {
	if actorID != t.SellerID {
		return forbidden("only the seller can do this")
	}
	return nil
}

func guardStatus(t *models.Ticket, want models.TicketStatus) error {
	if t.Status != want {
		return invalidState("ticket must be %s, it is %s", want, t.Status)
	}
	return nil
}

func guardNotClosed(t *models.Ticket) error {
	if t.Status == models.StatusClosed {
		return invalidState("ticket is closed")
	}
	return nil
}

// guardNegotiable allows price proposals only before a price was accepted.
func guardNegotiable(t *models.Ticket) error {
	switch t.Status {
	case models.StatusOpen, models.StatusNegotiating:
		return nil
	}
	return invalidState("price can no longer be changed, ticket is %s", t.Status)
}

var ticketIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// ValidID reports whether id has the 32 hex character ticket id shape.
func ValidID(id string) bool {
	return ticketIDPattern.MatchString(id)
}

func checkID(id string) error {
	if !ValidID(id) {
		return invalidField("id", "must be 32 hexadecimal characters")
	}
	return nil
}

// NewID returns a fresh ticket id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
