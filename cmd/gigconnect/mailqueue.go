package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/notifications"
	"github.com/gigconnect/gigconnect/internal/runner"
)

func newMailQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailqueue",
		Short: "Inspect and drain the outbound mail queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver every due message once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Email.Enabled {
				return errors.New("email.enabled is false, nothing to deliver")
			}

			db, err := openSQL(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			queue := mailqueue.NewMailQueueRepository(db)
			r := runner.New()
			for _, t := range buildRunnerTasks(cfg, queue, notifications.NewSMTPProvider(&cfg.Email)) {
				if err := r.Register(t); err != nil {
					return err
				}
			}
			if err := r.RunOnce(cmd.Context(), "email-queue"); err != nil {
				return err
			}

			left, err := queue.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail queue flushed, %d messages remain\n", left)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print the number of queued messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openSQL(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := mailqueue.NewMailQueueRepository(db).Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d messages queued\n", n)
			return nil
		},
	})
	return cmd
}
