package notifications

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigconnect/gigconnect/internal/models"
)

func testTicket() *models.Ticket {
	price := 500.0
	return &models.Ticket{
		ID:          "0123456789abcdef0123456789abcdef",
		SellerID:    "s1",
		BuyerID:     "b1",
		Status:      models.StatusNegotiating,
		AgreedPrice: &price,
	}
}

func TestRendererCoversEveryEvent(t *testing.T) {
	r, err := NewRenderer("Gig Connect", "https://gigs.example.com/")
	require.NoError(t, err)

	rating := 5
	recipient := &models.User{ID: "b1", Name: "Bea", Email: "bea@example.com"}
	for kind := range templateSources {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := r.Render(Event{
				Kind: kind, Ticket: testTicket(), ActorID: "s1", ActorName: "Sam",
				Content: "Hello & welcome", Attachment: "https://cdn.example.com/a.pdf", Rating: &rating,
			}, recipient)
			require.NoError(t, err)
			assert.Equal(t, []string{"bea@example.com"}, msg.To)
			assert.True(t, strings.HasPrefix(msg.Subject, "[Gig Connect] "), msg.Subject)
			assert.Contains(t, msg.Text, "Hi Bea,")
			assert.Contains(t, msg.Text, "https://gigs.example.com/tickets/0123456789abcdef0123456789abcdef")
			assert.Contains(t, msg.HTML, "<a href=\"https://gigs.example.com/tickets/")
		})
	}
}

func TestRendererPriceAndStatus(t *testing.T) {
	r, err := NewRenderer("Gig Connect", "http://localhost")
	require.NoError(t, err)

	msg, err := r.Render(Event{Kind: EventPriceProposed, Ticket: testTicket(), ActorName: "Sam"},
		&models.User{Name: "Bea", Email: "bea@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "[Gig Connect] Sam proposed $500", msg.Subject)
	assert.Contains(t, msg.Text, "**$500**")
	assert.Contains(t, msg.Text, "**Negotiating**")
	assert.Contains(t, msg.HTML, "<strong>$500</strong>")
}

func TestRendererPlainExcerpt(t *testing.T) {
	r, err := NewRenderer("Gig Connect", "http://localhost")
	require.NoError(t, err)

	msg, err := r.Render(Event{Kind: EventMessage, Ticket: testTicket(), ActorName: "Sam", Content: "Tom & Jerry <b>now</b>"},
		&models.User{Name: "Bea", Email: "bea@example.com"})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "> Tom & Jerry")
	assert.NotContains(t, msg.HTML, "<b>now</b>")
}

func TestRendererUnknownKind(t *testing.T) {
	r, err := NewRenderer("Gig Connect", "http://localhost")
	require.NoError(t, err)

	_, err = r.Render(Event{Kind: "bogus", Ticket: testTicket()}, &models.User{})
	assert.Error(t, err)
}

func TestBuildMessageIsMultipart(t *testing.T) {
	raw, err := BuildMessage("noreply@example.com", EmailMessage{
		To: []string{"bea@example.com"}, Subject: "Hello", Text: "plain body", HTML: "<p>html body</p>",
	}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Hello", subject)

	var bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"plain body", "<p>html body</p>"}, bodies)
}

func TestBuildMessageRequiresRecipient(t *testing.T) {
	_, err := BuildMessage("noreply@example.com", EmailMessage{Subject: "x"}, time.Now())
	assert.Error(t, err)
}
