package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gigconnect/gigconnect/internal/runner"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the websocket hub and the background runner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r := runner.New()
			for _, t := range buildRunnerTasks(cfg, a.queue, a.sender) {
				if err := r.Register(t); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      a.handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Printf("Listening on %s (%s)", cfg.Server.Addr, cfg.App.Env)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return r.Start(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Println("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				a.hub.Close()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
