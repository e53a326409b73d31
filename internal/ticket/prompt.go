package ticket

import (
	"strings"

	"github.com/gigconnect/gigconnect/internal/history"
	"github.com/gigconnect/gigconnect/internal/models"
)

// buildPrompt renders the transcript, the gig and the caller's question.
func buildPrompt(t *models.Ticket, gig *models.Gig, askerName, question string) string {
	var b strings.Builder

	b.WriteString("Gig: ")
	if gig != nil && gig.Title != "" {
		b.WriteString(gig.Title)
	} else {
		b.WriteString("unknown")
	}
	b.WriteString("\nListed price: ")
	if gig != nil {
		b.WriteString(history.FormatPrice(gig.Price))
	} else {
		b.WriteString("unknown")
	}
	if t.AgreedPrice != nil {
		b.WriteString("\nCurrently proposed price: ")
		b.WriteString(history.FormatPrice(*t.AgreedPrice))
	}
	b.WriteString("\nTicket status: ")
	b.WriteString(string(t.Status))

	b.WriteString("\n\nConversation so far:\n")
	if len(t.Messages) == 0 {
		b.WriteString("(no messages yet)\n")
	}
	for _, m := range t.Messages {
		b.WriteString(m.SenderName)
		b.WriteString(": ")
		b.WriteString(m.Content)
		if m.Attachment != "" {
			b.WriteString(" [attachment]")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nNew message from ")
	b.WriteString(askerName)
	b.WriteString(": ")
	b.WriteString(question)
	b.WriteString("\n\nWrite one helpful reply to move the negotiation forward.")
	return b.String()
}
