package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/overture/curator/internal/adapters/rest"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error().Err(err).Msg("shutdown cleanup failed")
				}
			}()

			handler := rest.NewHandler(a.curator, a.journal, logger,
				rest.WithCORS(cfg.Server.CORSOrigins...),
				rest.WithGenerateLimit(cfg.Server.GenerateRateLimit, time.Minute),
			)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           middleware.Timeout(cfg.Server.RequestTimeout)(handler),
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.Server.Addr).Msg("🎶 Overture curator API is running")
				err := srv.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
					return
				}
				serverErr <- nil
			}()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-serverErr:
				return err
			case <-sigCtx.Done():
				logger.Info().Msg("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown error")
					return err
				}
				return nil
			}
		},
	}
}
