package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRefreshInterval = time.Minute
	shutdownTimeout        = 5 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var refreshInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose /metrics and /healthz and keep the lookup cache fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, cmd.OutOrStdout(), func(a *app) error {
				return a.serve(ctx, opts.cfg.MetricsAddress, refreshInterval)
			})
		},
	}

	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", defaultRefreshInterval,
		"how often the lookup cache is reloaded from the store")

	return cmd
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// serve runs the HTTP endpoint and the periodic cache refresh until ctx is done.
func (a *app) serve(ctx context.Context, addr string, refreshInterval time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("metrics server listening", zap.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", zap.Error(err))
			return err
		}

		a.logger.Info("metrics server stopped")

		return nil
	})

	group.Go(func() error {
		return a.refreshLoop(groupCtx, refreshInterval)
	})

	return group.Wait()
}

// refreshLoop reloads the cache periodically so that changes by other processes become visible.
// Refresh failures are logged and retried on the next tick.
func (a *app) refreshLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.service.Refresh(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("cache refresh failed", zap.Error(err))
			}
		}
	}
}
