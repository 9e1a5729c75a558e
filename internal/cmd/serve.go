package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/authd/internal/housekeeping"
	"github.com/dukerupert/authd/internal/server"
	"github.com/dukerupert/authd/internal/store"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			srv, err := server.New(db, server.Options{
				SessionTTL:     cfg.Auth.SessionTTL,
				BcryptCost:     cfg.Auth.BcryptCost,
				SecureCookies:  cfg.IsProduction(),
				RequestTimeout: cfg.Server.RequestTimeout,
				CORSOrigins:    cfg.Server.CORSOrigins,
			}, logger)
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
				IdleTimeout:       120 * time.Second,
			}

			ctx := cmd.Context()

			// Background cleanup goroutine
			sweepCtx, sweepCancel := context.WithCancel(ctx)
			defer sweepCancel()
			sweeper := housekeeping.NewSweeper(
				store.NewSessionStore(db),
				store.NewPasswordResetStore(db),
				cfg.Housekeeping.Interval,
				logger.With("component", "housekeeping"),
			)
			go sweeper.Run(sweepCtx)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("authd starting", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			sweepCancel()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
				return err
			}
			return nil
		},
	}
}
