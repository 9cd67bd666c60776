package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mutdb/internal/accounts"
	apihttp "mutdb/internal/http"
	"mutdb/pkg/config"
	"mutdb/pkg/listener"
	"mutdb/pkg/metrics"
	"mutdb/pkg/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Remote != "" {
				return errors.New("serve does not support --remote")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, opts.cfg)
		},
	}
}

// runServe serves the store until ctx is done. With a flush interval set the
// store is also flushed on a timer.
func runServe(ctx context.Context, cfg config.Config) error {
	prom := metrics.NewPrometheus("mutdb")

	svc, err := accounts.Open(cfg.Store,
		store.WithLogger(slog.Default()),
		store.WithMetrics(prom),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	server := apihttp.NewServer(svc, strconv.Itoa(cfg.Server.Port),
		apihttp.WithMetrics(prom.Handler()),
		apihttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
	)
	if err := server.Start(); err != nil {
		return err
	}

	if cfg.Store.FlushInterval > 0 {
		ticker := time.NewTicker(cfg.Store.FlushInterval)
		flusher := listener.New(ticker.C, func(time.Time) error {
			return svc.Flush(ctx)
		}, ticker.Stop)
		flusher.Start(ctx)
		defer flusher.Stop()

		slog.Info("scheduled flush enabled", "interval", cfg.Store.FlushInterval)
	}

	slog.Info("mutdb serving", "path", cfg.Store.Path, "port", cfg.Server.Port)
	<-ctx.Done()

	if err := server.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	slog.Info("mutdb stopped")

	return nil
}
