package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/config"
	"github.com/abhisek/widen/internal/httpapi"
	"github.com/abhisek/widen/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service with background sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		d, err := buildDeps(cmd, nil, nil, logger)
		if err != nil {
			return err
		}
		defer d.store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sweeper := sweep.New(d.store, d.memory, d.pipeline, d.metrics, sweep.Config{
			DeadlineInterval: cfg.DeadlineInterval,
			RecoveryInterval: cfg.RecoveryInterval,
		}, logger)
		sweeper.Start(ctx)

		srv := &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           httpapi.New(d.engine, d.pipeline, logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "port", cfg.Port)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
		}
		return nil
	},
}
