package notifications

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/models"
)

// UserLookup resolves participants to their directory entries.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Queue accepts rendered mail for later delivery.
type Queue interface {
	Insert(ctx context.Context, item *mailqueue.MailQueueItem) error
}

// Dispatcher renders ticket events and puts them on the mail queue. Delivery
// happens in the email queue task.
type Dispatcher struct {
	cfg      *config.EmailConfig
	users    UserLookup
	queue    Queue
	renderer *Renderer
	logger   *log.Logger
	now      func() time.Time
}

func NewDispatcher(cfg *config.EmailConfig, users UserLookup, queue Queue, renderer *Renderer) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		users:    users,
		queue:    queue,
		renderer: renderer,
		logger:   log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
		now:      time.Now,
	}
}

// Notify queues mail for the event's recipient. It is a no-op when e-mail is
// disabled or the recipient has no address.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) error {
	if d.cfg == nil || !d.cfg.Enabled {
		return nil
	}

	recipientID := ev.Recipient()
	if recipientID == "" || recipientID == ev.ActorID {
		return nil
	}

	user, err := d.users.GetUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("notifications: look up %s: %w", recipientID, err)
	}
	if strings.TrimSpace(user.Email) == "" {
		d.logger.Printf("Skipping %s notification for ticket %s: user %s has no email", ev.Kind, ev.Ticket.ID, recipientID)
		return nil
	}

	msg, err := d.renderer.Render(ev, user)
	if err != nil {
		return err
	}
	raw, err := BuildMessage(d.cfg.From, msg, d.now())
	if err != nil {
		return fmt.Errorf("notifications: build %s message: %w", ev.Kind, err)
	}

	ticketID := ev.Ticket.ID
	item := &mailqueue.MailQueueItem{
		TicketID:   &ticketID,
		Recipient:  user.Email,
		Subject:    msg.Subject,
		RawMessage: string(raw),
	}
	if err := d.queue.Insert(ctx, item); err != nil {
		return fmt.Errorf("notifications: queue %s mail: %w", ev.Kind, err)
	}
	d.logger.Printf("Queued %s notification %s for ticket %s", ev.Kind, item.ID, ticketID)
	return nil
}
