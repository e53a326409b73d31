// Package tasks provides background task implementations for the runner.
package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/notifications"
	"github.com/gigconnect/gigconnect/internal/runner"
)

// MaxRetries is used when mail_queue.max_retries is unset.
const MaxRetries = 5

const (
	defaultBatchSize       = 50
	defaultRetryBackoff    = time.Minute
	defaultFailedRetention = 7 * 24 * time.Hour
	maxRetryBackoff        = 6 * time.Hour
	failedCleanupBatch     = 100
)

// EmailQueueTask delivers queued notification mail.
type EmailQueueTask struct {
	repo     *mailqueue.MailQueueRepository
	sender   notifications.EmailProvider
	cfg      *config.EmailConfig
	queueCfg config.MailQueueConfig
	logger   *log.Logger
	now      func() time.Time
}

// NewEmailQueueTask creates the mail delivery task.
func NewEmailQueueTask(repo *mailqueue.MailQueueRepository, sender notifications.EmailProvider, cfg *config.EmailConfig, queueCfg config.MailQueueConfig) runner.Task {
	return &EmailQueueTask{
		repo:     repo,
		sender:   sender,
		cfg:      cfg,
		queueCfg: queueCfg,
		logger:   log.New(log.Writer(), "[EMAIL-QUEUE] ", log.LstdFlags),
		now:      time.Now,
	}
}

func (t *EmailQueueTask) Name() string { return "email-queue" }

func (t *EmailQueueTask) Schedule() string {
	if t.queueCfg.Schedule != "" {
		return t.queueCfg.Schedule
	}
	return "@every 30s"
}

func (t *EmailQueueTask) Timeout() time.Duration { return 5 * time.Minute }

// Run sends every due item, reschedules failures and prunes items that ran
// out of retries.
func (t *EmailQueueTask) Run(ctx context.Context) error {
	if t.cfg == nil || !t.cfg.Enabled {
		return nil
	}

	items, err := t.repo.GetPending(ctx, t.maxRetries(), t.batchSize())
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := t.deliver(ctx, item); err != nil {
			failed++
			t.logger.Printf("Delivery of %s to %s failed (attempt %d/%d): %v", item.ID, item.Recipient, item.Attempts+1, t.maxRetries(), err)
			continue
		}
		sent++
	}
	if sent > 0 || failed > 0 {
		t.logger.Printf("Processed %d queued emails: %d sent, %d failed", len(items), sent, failed)
	}

	if err := t.cleanupFailedEmails(ctx); err != nil {
		t.logger.Printf("Failed email cleanup error: %v", err)
	}
	return nil
}

func (t *EmailQueueTask) deliver(ctx context.Context, item *mailqueue.MailQueueItem) error {
	sendErr := t.sender.SendRaw(ctx, []string{item.Recipient}, []byte(item.RawMessage))
	if sendErr == nil {
		return t.repo.Delete(ctx, item.ID)
	}

	attempts := item.Attempts + 1
	next := t.clock().Add(t.backoff(attempts))
	if err := t.repo.MarkFailed(ctx, item.ID, attempts, next, sendErr.Error()); err != nil {
		return fmt.Errorf("%v (and could not reschedule: %w)", sendErr, err)
	}
	return sendErr
}

// backoff doubles the base delay per attempt, capped at maxRetryBackoff.
func (t *EmailQueueTask) backoff(attempts int) time.Duration {
	base := t.queueCfg.RetryBackoff
	if base <= 0 {
		base = defaultRetryBackoff
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

// cleanupFailedEmails deletes exhausted items older than the retention window.
func (t *EmailQueueTask) cleanupFailedEmails(ctx context.Context) error {
	failed, err := t.repo.GetFailed(ctx, t.maxRetries(), failedCleanupBatch)
	if err != nil {
		return err
	}

	cutoff := t.clock().Add(-t.retention())
	removed := 0
	for _, item := range failed {
		if item.Attempts < t.maxRetries() || !item.CreateTime.Before(cutoff) {
			continue
		}
		if err := t.repo.Delete(ctx, item.ID); err != nil {
			return err
		}
		removed++
	}
	if removed > 0 {
		t.logger.Printf("Removed %d failed emails older than %v", removed, t.retention())
	}
	return nil
}

func (t *EmailQueueTask) maxRetries() int {
	if t.queueCfg.MaxRetries > 0 {
		return t.queueCfg.MaxRetries
	}
	return MaxRetries
}

func (t *EmailQueueTask) batchSize() int {
	if t.queueCfg.BatchSize > 0 {
		return t.queueCfg.BatchSize
	}
	return defaultBatchSize
}

func (t *EmailQueueTask) retention() time.Duration {
	if t.queueCfg.FailedRetention > 0 {
		return t.queueCfg.FailedRetention
	}
	return defaultFailedRetention
}

func (t *EmailQueueTask) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}
