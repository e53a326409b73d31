package ticket

import (
	"context"
	"io"

	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/notifications"
)

// Store persists whole ticket documents. Save must fail with
// repository.ErrVersionConflict when t.Version is stale.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	FindByParticipant(ctx context.Context, userID string) ([]*models.Ticket, error)
	Insert(ctx context.Context, t *models.Ticket) error
	Save(ctx context.Context, t *models.Ticket) error
}

// Directory is the user and gig side of the marketplace.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetGig(ctx context.Context, id string) (*models.Gig, error)
	CreditSeller(ctx context.Context, sellerID string, amount float64) error
	RecordOrder(ctx context.Context, t *models.Ticket) error
	RecordCompletion(ctx context.Context, sellerID, ticketID string) (models.SellerStats, error)
	RecordRating(ctx context.Context, sellerID, gigID, ticketID string, rating int) (float64, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notifications.Event) error
}

// Publisher pushes an updated ticket to connected participants.
type Publisher interface {
	PublishTicket(ctx context.Context, t *models.Ticket)
}

type Responder interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, ticketID, filename, contentType string, body io.Reader) (string, error)
}

type Sanitizer interface {
	Strip(input string) string
}

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Name string
}

// Upload is a file attached to a message.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
