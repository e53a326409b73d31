// Package history builds the human-readable lines written to a ticket's
// timeline.
package history

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gigconnect/gigconnect/internal/models"
)

// Opened is the first timeline line of every ticket.
func Opened(gigTitle string) string {
	if gigTitle = strings.TrimSpace(gigTitle); gigTitle == "" {
		return "Ticket opened"
	}
	return fmt.Sprintf("Ticket opened for gig %q", gigTitle)
}

func MessageSent(actor string) string {
	return fmt.Sprintf("%s sent a message", actorName(actor))
}

// AttachmentMessageSent words a send from the attachment path.
func AttachmentMessageSent(actor string, hasAttachment bool) string {
	if hasAttachment {
		return fmt.Sprintf("%s sent a message with an attachment", actorName(actor))
	}
	return fmt.Sprintf("%s sent a message without an attachment", actorName(actor))
}

func PriceProposed(actor string, price float64) string {
	return fmt.Sprintf("%s proposed a price of %s", actorName(actor), FormatPrice(price))
}

func PriceAccepted(actor string, price float64) string {
	return fmt.Sprintf("%s accepted the price of %s", actorName(actor), FormatPrice(price))
}

func PaymentConfirmed(actor string, price float64) string {
	return fmt.Sprintf("%s confirmed payment of %s", actorName(actor), FormatPrice(price))
}

func Completed(actor string) string {
	return fmt.Sprintf("%s marked the gig as completed", actorName(actor))
}

// Closed words the terminal transition, mentioning the rating when given.
func Closed(actor string, rating *int) string {
	if rating == nil {
		return fmt.Sprintf("%s closed the ticket", actorName(actor))
	}
	return fmt.Sprintf("%s closed the ticket with a %d-star rating", actorName(actor), *rating)
}

func AIResponded() string {
	return models.AISenderName + " responded"
}

// ChangeMessage renders a generic "X changed from A to B" line.
func ChangeMessage(field, from, to string) string {
	return fmt.Sprintf("%s changed from %s to %s", field, from, to)
}

// FormatPrice renders a price without trailing zero decimals.
func FormatPrice(price float64) string {
	return "$" + strconv.FormatFloat(price, 'f', -1, 64)
}

// Excerpt shortens text to at most limit runes on a word boundary when one is
// close, appending an ellipsis.
func Excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}

func actorName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Someone"
	}
	return name
}
