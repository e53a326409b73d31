// Package ticket implements the buyer/seller negotiation workflow: the
// participant guard, the status machine, the message ledger and the AI
// responder, on top of a versioned ticket store.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/history"
	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/notifications"
	"github.com/gigconnect/gigconnect/internal/repository"
	"github.com/gigconnect/gigconnect/internal/utils"
)

// maxSaveAttempts bounds the reload-and-retry loop on version conflicts.
const maxSaveAttempts = 3

const defaultAITimeout = 30 * time.Second

// Channels a message can arrive on.
const (
	ChannelREST     = "rest"
	ChannelRealtime = "realtime"
	ChannelAI       = "ai"
)

type channelKey struct{}

// WithChannel tags ctx with the surface a request arrived on.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok && ch != "" {
		return ch
	}
	return ChannelREST
}

// errUnchanged lets a mutation skip the save.
var errUnchanged = errors.New("unchanged")

type Service struct {
	store     Store
	directory Directory
	notifier  Notifier
	publisher Publisher
	responder Responder
	uploader  Uploader
	sanitizer Sanitizer
	locks     *keyedMutex
	aiTimeout time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithResponder(r Responder) Option { return func(s *Service) { s.responder = r } }

func WithUploader(u Uploader) Option { return func(s *Service) { s.uploader = u } }

func WithSanitizer(z Sanitizer) Option { return func(s *Service) { s.sanitizer = z } }

// WithAITimeout bounds every AI call. Zero keeps the default.
func WithAITimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.aiTimeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires the workflow. Optional collaborators default to no-ops.
func NewService(store Store, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		locks:     newKeyedMutex(),
		aiTimeout: defaultAITimeout,
		logger:    log.New(log.Writer(), "[TICKETS] ", log.LstdFlags),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sanitizer == nil {
		s.sanitizer = utils.NewHTMLSanitizer()
	}
	return s
}

// List returns the actor's tickets, newest first.
func (s *Service) List(ctx context.Context, actor Actor) ([]*models.Ticket, error) {
	if actor.ID == "" {
		return nil, forbidden("unknown caller")
	}
	tickets, err := s.store.FindByParticipant(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list tickets for %s: %w", actor.ID, err)
	}
	return tickets, nil
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (*models.Ticket, error) {
	return s.loadFor(ctx, id, actor)
}

func (s *Service) Timeline(ctx context.Context, id string, actor Actor) ([]models.TimelineEntry, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	t, err := s.loadFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if t.Timeline == nil {
		return []models.TimelineEntry{}, nil
	}
	return t.Timeline, nil
}

// Search filters the ticket's messages by a case-insensitive substring.
func (s *Service) Search(ctx context.Context, id string, actor Actor, query string) ([]models.Message, error) {
	t, err := s.loadFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return searchMessages(t.Messages, query), nil
}

// Debug returns the raw ticket without a participant check.
func (s *Service) Debug(ctx context.Context, id string) (*models.Ticket, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Open creates a ticket for an accepted gig application.
func (s *Service) Open(ctx context.Context, gigID, sellerID, buyerID string) (t *models.Ticket, err error) {
	defer s.observe("open", &err)

	verr := &ValidationError{}
	for _, f := range []struct{ name, value string }{{"gigId", gigID}, {"sellerId", sellerID}, {"buyerId", buyerID}} {
		if strings.TrimSpace(f.value) == "" {
			verr.Fields = append(verr.Fields, apierrors.FieldError{Field: f.name, Message: "is required"})
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if sellerID == buyerID {
		return nil, invalidField("buyerId", "must differ from the seller")
	}

	gig, err := s.directory.GetGig(ctx, gigID)
	if errors.Is(err, repository.ErrGigNotFound) {
		return nil, invalidField("gigId", "unknown gig")
	}
	if err != nil {
		return nil, fmt.Errorf("load gig %s: %w", gigID, err)
	}
	if gig.SellerID != "" && gig.SellerID != sellerID {
		return nil, invalidField("sellerId", "does not own this gig")
	}

	now := s.now()
	t = &models.Ticket{
		ID:        NewID(),
		GigID:     gigID,
		SellerID:  sellerID,
		BuyerID:   buyerID,
		Status:    models.StatusOpen,
		Messages:  []models.Message{},
		Timeline:  []models.TimelineEntry{{Action: history.Opened(gig.Title), Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	if err := s.directory.RecordOrder(ctx, t); err != nil {
		s.logger.Printf("Failed to record order for ticket %s: %v", t.ID, err)
	}
	return t, nil
}

// SendMessage appends a text message. It is shared by the REST and realtime
// surfaces.
func (s *Service) SendMessage(ctx context.Context, id string, actor Actor, content string) (t *models.Ticket, err error) {
	defer s.observe("send_message", &err)

	if _, err = s.loadFor(ctx, id, actor); err != nil {
		return nil, err
	}
	clean := s.cleanContent(content)
	if err = validateContent(clean, false); err != nil {
		return nil, err
	}
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardNotClosed(t); err != nil {
			return err
		}
		if err := promoteOpen(t); err != nil {
			return err
		}
		s.appendMessage(t, models.Message{SenderID: actor.ID, SenderName: name, Content: clean})
		s.appendTimeline(t, history.MessageSent(name))
		return nil
	})
	if err != nil {
		return nil, err
	}

	messagesTotal.WithLabelValues(channelFrom(ctx)).Inc()
	s.publish(ctx, t)
	s.notify(ctx, notifications.Event{Kind: notifications.EventMessage, Ticket: t, ActorID: actor.ID, ActorName: name, Content: clean})
	return t, nil
}

// SendAttachment appends a message with an optional uploaded file. Content
// may be empty only when a file is supplied.
func (s *Service) SendAttachment(ctx context.Context, id string, actor Actor, content string, upload *Upload) (t *models.Ticket, err error) {
	defer s.observe("send_attachment", &err)

	current, err := s.loadFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	clean := s.cleanContent(content)
	if err = validateContent(clean, true); err != nil {
		return nil, err
	}
	if clean == "" && upload == nil {
		return nil, invalidField("content", "content or a file is required")
	}
	if err = guardNotClosed(current); err != nil {
		return nil, err
	}

	url := ""
	if upload != nil {
		if s.uploader == nil {
			return nil, &UpstreamError{Service: "storage", Err: errors.New("no uploader configured")}
		}
		url, err = s.uploader.Upload(ctx, id, upload.Filename, upload.ContentType, upload.Body)
		if err != nil {
			return nil, &UpstreamError{Service: "storage", Err: err}
		}
		if url == "" {
			return nil, &UpstreamError{Service: "storage", Err: errors.New("upload returned no URL")}
		}
	}

	name := s.displayName(ctx, actor)
	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardNotClosed(t); err != nil {
			return err
		}
		if err := promoteOpen(t); err != nil {
			return err
		}
		s.appendMessage(t, models.Message{SenderID: actor.ID, SenderName: name, Content: clean, Attachment: url})
		s.appendTimeline(t, history.AttachmentMessageSent(name, url != ""))
		return nil
	})
	if err != nil {
		if url != "" {
			s.logger.Printf("Attachment %s for ticket %s was uploaded but not recorded: %v", url, id, err)
		}
		return nil, err
	}

	messagesTotal.WithLabelValues(channelFrom(ctx)).Inc()
	s.publish(ctx, t)
	s.notify(ctx, notifications.Event{Kind: notifications.EventAttachment, Ticket: t, ActorID: actor.ID, ActorName: name, Content: clean, Attachment: url})
	return t, nil
}

// ProposePrice sets the agreed price and keeps the ticket negotiating.
// Re-proposals overwrite the price; earlier values survive only in the
// timeline text.
func (s *Service) ProposePrice(ctx context.Context, id string, actor Actor, price float64) (t *models.Ticket, err error) {
	defer s.observe("propose_price", &err)

	if _, err = s.loadFor(ctx, id, actor); err != nil {
		return nil, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, invalidField("price", "must be a positive number")
	}
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardNotClosed(t); err != nil {
			return err
		}
		if err := guardNegotiable(t); err != nil {
			return err
		}
		if err := setStatus(t, models.StatusNegotiating); err != nil {
			return err
		}
		p := price
		t.AgreedPrice = &p
		s.appendTimeline(t, history.PriceProposed(name, price))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.Event{Kind: notifications.EventPriceProposed, Ticket: t, ActorID: actor.ID, ActorName: name})
	return t, nil
}

func (s *Service) AcceptPrice(ctx context.Context, id string, actor Actor) (t *models.Ticket, err error) {
	defer s.observe("accept_price", &err)
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardBuyer(t, actor.ID); err != nil {
			return err
		}
		if err := guardStatus(t, models.StatusNegotiating); err != nil {
			return err
		}
		if t.AgreedPrice == nil {
			return invalidState("no price has been proposed")
		}
		if err := setStatus(t, models.StatusAccepted); err != nil {
			return err
		}
		s.appendTimeline(t, history.PriceAccepted(name, *t.AgreedPrice))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.Event{Kind: notifications.EventPriceAccepted, Ticket: t, ActorID: actor.ID, ActorName: name})
	return t, nil
}

// ConfirmPayment marks the ticket paid and credits the seller.
func (s *Service) ConfirmPayment(ctx context.Context, id string, actor Actor) (t *models.Ticket, err error) {
	defer s.observe("confirm_payment", &err)
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardBuyer(t, actor.ID); err != nil {
			return err
		}
		if err := guardStatus(t, models.StatusAccepted); err != nil {
			return err
		}
		if t.AgreedPrice == nil {
			return invalidState("no price has been agreed")
		}
		if err := setStatus(t, models.StatusPaid); err != nil {
			return err
		}
		s.appendTimeline(t, history.PaymentConfirmed(name, *t.AgreedPrice))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.directory.CreditSeller(ctx, t.SellerID, *t.AgreedPrice); err != nil {
		s.logger.Printf("Failed to credit seller %s for ticket %s: %v", t.SellerID, t.ID, err)
	}
	s.notify(ctx, notifications.Event{Kind: notifications.EventPaymentConfirmed, Ticket: t, ActorID: actor.ID, ActorName: name})
	return t, nil
}

// Complete lets the seller mark a paid gig done and updates their stats.
func (s *Service) Complete(ctx context.Context, id string, actor Actor) (t *models.Ticket, err error) {
	defer s.observe("complete", &err)
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardSeller(t, actor.ID); err != nil {
			return err
		}
		if err := guardStatus(t, models.StatusPaid); err != nil {
			return err
		}
		if err := setStatus(t, models.StatusCompleted); err != nil {
			return err
		}
		s.appendTimeline(t, history.Completed(name))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats, err := s.directory.RecordCompletion(ctx, t.SellerID, t.ID); err != nil {
		s.logger.Printf("Failed to record completion of ticket %s for seller %s: %v", t.ID, t.SellerID, err)
	} else if debugEnabled() {
		s.logger.Printf("Seller %s now has %d completed gigs (%.2f%%)", t.SellerID, stats.GigsCompleted, stats.CompletionRate)
	}
	s.notify(ctx, notifications.Event{Kind: notifications.EventCompleted, Ticket: t, ActorID: actor.ID, ActorName: name})
	return t, nil
}

// Close ends a completed ticket, optionally rating the seller 1 to 5.
func (s *Service) Close(ctx context.Context, id string, actor Actor, rating *int) (t *models.Ticket, err error) {
	defer s.observe("close", &err)

	if _, err = s.loadFor(ctx, id, actor); err != nil {
		return nil, err
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, invalidField("rating", "must be between 1 and 5")
	}
	name := s.displayName(ctx, actor)

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if err := guardBuyer(t, actor.ID); err != nil {
			return err
		}
		if err := guardStatus(t, models.StatusCompleted); err != nil {
			return err
		}
		if err := setStatus(t, models.StatusClosed); err != nil {
			return err
		}
		s.appendTimeline(t, history.Closed(name, rating))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rating != nil {
		if _, err := s.directory.RecordRating(ctx, t.SellerID, t.GigID, t.ID, *rating); err != nil {
			s.logger.Printf("Failed to record rating for ticket %s: %v", t.ID, err)
		}
	}
	s.notify(ctx, notifications.Event{Kind: notifications.EventClosed, Ticket: t, ActorID: actor.ID, ActorName: name, Rating: rating})
	return t, nil
}

// MarkRead marks every message not sent by the actor as read. Repeating it is
// a no-op and nothing is written to the timeline.
func (s *Service) MarkRead(ctx context.Context, id string, actor Actor) (t *models.Ticket, err error) {
	defer s.observe("mark_read", &err)

	if err = checkID(id); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		if markRead(t, actor.ID) == 0 {
			return errUnchanged
		}
		return nil
	})
}

// AIResponse asks the responder for a reply to content and appends it as an
// AI message. The status does not change.
func (s *Service) AIResponse(ctx context.Context, id string, actor Actor, content string) (t *models.Ticket, err error) {
	defer s.observe("ai_response", &err)

	current, err := s.loadFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	clean := s.cleanContent(content)
	if err = validateContent(clean, false); err != nil {
		return nil, err
	}
	if s.responder == nil {
		return nil, &UpstreamError{Service: "AI responder", Err: errors.New("not configured")}
	}
	gig, gerr := s.directory.GetGig(ctx, current.GigID)
	if gerr != nil {
		s.logger.Printf("AI prompt for ticket %s without gig details: %v", id, gerr)
		gig = nil
	}
	name := s.displayName(ctx, actor)
	prompt := buildPrompt(current, gig, name, clean)

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	start := time.Now()
	raw, err := s.responder.Generate(aiCtx, prompt)
	cancel()
	aiRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Printf("AI responder failed for ticket %s (caller %s): %v", id, actor.ID, err)
		return nil, &UpstreamError{Service: "AI responder", Err: err}
	}

	reply := truncate(s.cleanContent(raw), models.MaxMessageLength)
	if reply == "" {
		return nil, &UpstreamError{Service: "AI responder", Err: errors.New("empty reply")}
	}

	t, err = s.mutate(ctx, id, actor, func(t *models.Ticket) error {
		s.appendMessage(t, models.Message{SenderID: models.AISenderID, SenderName: models.AISenderName, Content: reply})
		s.appendTimeline(t, history.AIResponded())
		return nil
	})
	if err != nil {
		return nil, err
	}

	messagesTotal.WithLabelValues(ChannelAI).Inc()
	s.publish(ctx, t)
	s.notify(ctx, notifications.Event{
		Kind: notifications.EventAIResponse, Ticket: t, ActorID: actor.ID, ActorName: models.AISenderName,
		RecipientID: t.Counterpart(actor.ID), Content: reply,
	})
	return t, nil
}

// CanJoin reports whether actor may follow the ticket's live updates.
func (s *Service) CanJoin(ctx context.Context, id string, actor Actor) error {
	_, err := s.loadFor(ctx, id, actor)
	return err
}

func (s *Service) load(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", id, err)
	}
	return t, nil
}

func (s *Service) loadFor(ctx context.Context, id string, actor Actor) (*models.Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardParticipant(t, actor.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// mutate loads, guards, applies and saves under the ticket's lock, reloading
// on version conflicts from other processes.
func (s *Service) mutate(ctx context.Context, id string, actor Actor, apply func(t *models.Ticket) error) (*models.Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		t, err := s.loadFor(ctx, id, actor)
		if err != nil {
			return nil, err
		}
		if err := apply(t); err != nil {
			if errors.Is(err, errUnchanged) {
				return t, nil
			}
			return nil, err
		}

		err = s.store.Save(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("save ticket %s: %w", id, err)
		}
		saveConflictsTotal.Inc()
		if attempt >= maxSaveAttempts {
			s.logger.Printf("Giving up on ticket %s after %d conflicting saves", id, attempt)
			return nil, ErrConflict
		}
	}
}

func promoteOpen(t *models.Ticket) error {
	if t.Status == models.StatusOpen {
		return setStatus(t, models.StatusNegotiating)
	}
	return nil
}

func (s *Service) appendMessage(t *models.Ticket, m models.Message) {
	m.Timestamp = s.now()
	t.Messages = append(t.Messages, m)
}

func (s *Service) appendTimeline(t *models.Ticket, action string) {
	t.Timeline = append(t.Timeline, models.TimelineEntry{Action: action, Timestamp: s.now()})
}

// displayName is the name captured on messages and timeline lines.
func (s *Service) displayName(ctx context.Context, actor Actor) string {
	if name := strings.TrimSpace(actor.Name); name != "" {
		return name
	}
	if u, err := s.directory.GetUser(ctx, actor.ID); err == nil && strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return actor.ID
}

func (s *Service) publish(ctx context.Context, t *models.Ticket) {
	if s.publisher != nil {
		s.publisher.PublishTicket(ctx, t.Clone())
	}
}

func (s *Service) notify(ctx context.Context, ev notifications.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Printf("Notification %s for ticket %s failed: %v", ev.Kind, ev.Ticket.ID, err)
	}
}

func (s *Service) observe(op string, errp *error) {
	transitionsTotal.WithLabelValues(op, resultLabel(*errp)).Inc()
	if *errp != nil && resultLabel(*errp) == "error" {
		s.logger.Printf("%s failed: %v", op, *errp)
	}
}
