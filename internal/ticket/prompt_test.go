package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigconnect/gigconnect/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	price := 300.0
	tk := &models.Ticket{
		Status:      models.StatusNegotiating,
		AgreedPrice: &price,
		Messages: []models.Message{
			{SenderName: "Bea", Content: "Tom & Jerry style?"},
			{SenderName: "Sam", Content: "sure", Attachment: "/uploads/x.png"},
		},
	}

	p := buildPrompt(tk, &models.Gig{Title: "Cartoon", Price: 250}, "Bea", "Is $300 fair?")
	assert.Contains(t, p, "Gig: Cartoon")
	assert.Contains(t, p, "Listed price: $250")
	assert.Contains(t, p, "Currently proposed price: $300")
	assert.Contains(t, p, "Ticket status: negotiating")
	assert.Contains(t, p, "Bea: Tom & Jerry style?")
	assert.Contains(t, p, "Sam: sure [attachment]")
	assert.Contains(t, p, "New message from Bea: Is $300 fair?")

	empty := buildPrompt(&models.Ticket{Status: models.StatusOpen}, nil, "Sam", "hi")
	assert.Contains(t, empty, "Gig: unknown")
	assert.Contains(t, empty, "(no messages yet)")
}
