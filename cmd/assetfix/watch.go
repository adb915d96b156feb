package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thedaily/assetfix/internal/watch"
)

func newWatchCmd(configPath *string) *cobra.Command {
	var flags siteFlags
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dist-dir]",
		Short: "Rewrite files as the site generator writes them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, &flags, args)
			if err != nil {
				return err
			}
			if debounce > 0 {
				cfg.Watch.Debounce = debounce
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := a.walker(false)
			if err != nil {
				return err
			}
			// The watcher queues every file again as it registers the tree,
			// which covers pages written between this pass and the watch.
			if _, err := w.Run(ctx); err != nil {
				return err
			}

			metricsSrv := startMetricsServer(a)
			defer func() {
				if metricsSrv != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metricsSrv.Shutdown(shutdownCtx)
				}
			}()

			watcher, err := watch.New(a.distDir(), w, watch.Options{
				Debounce: cfg.Watch.Debounce,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			return watcher.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a changed file is rewritten (e.g. 200ms)")

	return cmd
}

func startMetricsServer(a *app) *http.Server {
	if !a.cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler(a.registry))

	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", slog.Any("error", err))
		}
	}()
	a.logger.Info("serving metrics", slog.String("listen", a.cfg.Metrics.Listen))
	return srv
}
