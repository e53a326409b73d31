// Package mailqueue stores rendered notification mail until the email queue
// task delivers it.
package mailqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MailQueueItem is one rendered message waiting for delivery.
type MailQueueItem struct {
	ID         string    `db:"id"`
	TicketID   *string   `db:"ticket_id"`
	Recipient  string    `db:"recipient"`
	Subject    string    `db:"subject"`
	RawMessage string    `db:"raw_message"`
	Attempts   int       `db:"attempts"`
	DueTime    time.Time `db:"due_time"`
	LastError  *string   `db:"last_error"`
	CreateTime time.Time `db:"create_time"`
}

const itemColumns = `id, ticket_id, recipient, subject, raw_message, attempts, due_time, last_error, create_time`

// MailQueueRepository reads and writes the mail_queue table.
type MailQueueRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMailQueueRepository(db *sqlx.DB) *MailQueueRepository {
	return &MailQueueRepository{db: db, now: time.Now}
}

// Insert queues an item for immediate delivery. ID, DueTime and CreateTime
// are filled in when empty.
func (r *MailQueueRepository) Insert(ctx context.Context, item *MailQueueItem) error {
	now := r.now()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreateTime.IsZero() {
		item.CreateTime = now
	}
	if item.DueTime.IsZero() {
		item.DueTime = now
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO mail_queue (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.TicketID, item.Recipient, item.Subject, item.RawMessage,
		item.Attempts, item.DueTime, item.LastError, item.CreateTime)
	if err != nil {
		return fmt.Errorf("mailqueue: insert: %w", err)
	}
	return nil
}

// GetPending returns due items that have not exhausted maxAttempts, oldest
// due first.
func (r *MailQueueRepository) GetPending(ctx context.Context, maxAttempts, limit int) ([]*MailQueueItem, error) {
	items := []*MailQueueItem{}
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT `+itemColumns+`
		FROM mail_queue
		WHERE due_time <= ? AND attempts < ?
		ORDER BY due_time ASC
		LIMIT ?`), r.now(), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("mailqueue: get pending: %w", err)
	}
	return items, nil
}

// GetFailed returns items that reached maxAttempts, oldest first.
func (r *MailQueueRepository) GetFailed(ctx context.Context, maxAttempts, limit int) ([]*MailQueueItem, error) {
	items := []*MailQueueItem{}
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT `+itemColumns+`
		FROM mail_queue
		WHERE attempts >= ?
		ORDER BY create_time ASC
		LIMIT ?`), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("mailqueue: get failed: %w", err)
	}
	return items, nil
}

// MarkFailed records a failed attempt and schedules the next one.
func (r *MailQueueRepository) MarkFailed(ctx context.Context, id string, attempts int, nextDue time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE mail_queue SET attempts = ?, due_time = ?, last_error = ? WHERE id = ?`),
		attempts, nextDue, reason, id)
	if err != nil {
		return fmt.Errorf("mailqueue: mark failed %s: %w", id, err)
	}
	return nil
}

// Delete removes a sent or abandoned item.
func (r *MailQueueRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM mail_queue WHERE id = ?`), id); err != nil {
		return fmt.Errorf("mailqueue: delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of queued rows, delivered or not.
func (r *MailQueueRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM mail_queue`); err != nil {
		return 0, fmt.Errorf("mailqueue: count: %w", err)
	}
	return n, nil
}
