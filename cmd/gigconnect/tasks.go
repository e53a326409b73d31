package main

import (
	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/notifications"
	"github.com/gigconnect/gigconnect/internal/runner"
	"github.com/gigconnect/gigconnect/internal/runner/tasks"
)

// buildRunnerTasks returns the background tasks cfg enables. Without e-mail
// there is nothing to deliver, so the queue task is left out.
func buildRunnerTasks(cfg *config.Config, queue *mailqueue.MailQueueRepository, sender notifications.EmailProvider) []runner.Task {
	if cfg == nil || !cfg.Email.Enabled {
		return nil
	}
	return []runner.Task{
		tasks.NewEmailQueueTask(queue, sender, &cfg.Email, cfg.MailQueue),
	}
}

func findTask(list []runner.Task, name string) runner.Task {
	for _, t := range list {
		if t != nil && t.Name() == name {
			return t
		}
	}
	return nil
}
