package tasks

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/notifications"
)

var queueColumns = []string{
	"id", "ticket_id", "recipient", "subject", "raw_message", "attempts", "due_time", "last_error", "create_time",
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(context.Context, notifications.EmailMessage) error { return nil }

func (f *fakeSender) SendRaw(_ context.Context, to []string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to...)
	return nil
}

func newTask(t *testing.T, sender *fakeSender, now time.Time) (*EmailQueueTask, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := mailqueue.NewMailQueueRepository(sqlx.NewDb(db, "sqlmock"))
	task := &EmailQueueTask{
		repo:   repo,
		sender: sender,
		cfg:    &config.EmailConfig{Enabled: true},
		logger: log.New(io.Discard, "", 0),
		now:    func() time.Time { return now },
	}
	return task, mock
}

func TestCleanupFailedEmailsDeletesOnlyOld(t *testing.T) {
	now := time.Now()
	task, mock := newTask(t, &fakeSender{}, now)
	ctx := context.Background()

	oldTime := now.Add(-8 * 24 * time.Hour)
	recentTime := now.Add(-48 * time.Hour)

	rows := sqlmock.NewRows(queueColumns).
		AddRow("old", nil, "old@example.com", "s", "raw", MaxRetries, oldTime, "fail", oldTime).
		AddRow("recent", nil, "recent@example.com", "s", "raw", MaxRetries, recentTime, "fail", recentTime)

	mock.ExpectQuery("SELECT id, ticket_id.*FROM mail_queue.*WHERE attempts >= .*ORDER BY create_time ASC.*LIMIT ?").
		WithArgs(MaxRetries, 100).
		WillReturnRows(rows)

	mock.ExpectExec("DELETE FROM mail_queue WHERE id = ?").
		WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := task.cleanupFailedEmails(ctx); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCleanupFailedEmailsSkipsNonMaxAttempts(t *testing.T) {
	now := time.Now()
	task, mock := newTask(t, &fakeSender{}, now)
	ctx := context.Background()

	createTime := now.Add(-10 * 24 * time.Hour)

	rows := sqlmock.NewRows(queueColumns).
		AddRow("keep", nil, "keep@example.com", "s", "raw", MaxRetries-1, createTime, "fail", createTime)

	mock.ExpectQuery("SELECT id, ticket_id.*FROM mail_queue.*WHERE attempts >= .*ORDER BY create_time ASC.*LIMIT ?").
		WithArgs(MaxRetries, 100).
		WillReturnRows(rows)

	if err := task.cleanupFailedEmails(ctx); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunDeliversAndDeletes(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	task, mock := newTask(t, sender, now)

	mock.ExpectQuery("WHERE due_time <= .* AND attempts < .*").
		WithArgs(sqlmock.AnyArg(), MaxRetries, 50).
		WillReturnRows(sqlmock.NewRows(queueColumns).
			AddRow("m1", "t1", "sam@example.com", "s", "raw", 0, now, nil, now))
	mock.ExpectExec("DELETE FROM mail_queue WHERE id = ?").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("WHERE attempts >= ").
		WithArgs(MaxRetries, 100).
		WillReturnRows(sqlmock.NewRows(queueColumns))

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "sam@example.com" {
		t.Fatalf("unexpected deliveries: %v", sender.sent)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunReschedulesFailuresWithBackoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	task, mock := newTask(t, &fakeSender{err: errors.New("421 try later")}, now)

	mock.ExpectQuery("WHERE due_time <= .* AND attempts < .*").
		WithArgs(sqlmock.AnyArg(), MaxRetries, 50).
		WillReturnRows(sqlmock.NewRows(queueColumns).
			AddRow("m1", nil, "sam@example.com", "s", "raw", 2, now, "earlier", now))
	// third attempt: 1m * 2 * 2
	mock.ExpectExec("UPDATE mail_queue SET attempts = ").
		WithArgs(3, now.Add(4*time.Minute), "421 try later", "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("WHERE attempts >= ").
		WithArgs(MaxRetries, 100).
		WillReturnRows(sqlmock.NewRows(queueColumns))

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunDisabledDoesNothing(t *testing.T) {
	task, mock := newTask(t, &fakeSender{}, time.Now())
	task.cfg.Enabled = false

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	task := &EmailQueueTask{queueCfg: config.MailQueueConfig{RetryBackoff: time.Hour}}
	if got := task.backoff(1); got != time.Hour {
		t.Fatalf("first attempt backoff = %v", got)
	}
	if got := task.backoff(10); got != maxRetryBackoff {
		t.Fatalf("capped backoff = %v", got)
	}
}
