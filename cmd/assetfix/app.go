package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/thedaily/assetfix/internal/config"
	"github.com/thedaily/assetfix/internal/logging"
	"github.com/thedaily/assetfix/internal/observability"
	"github.com/thedaily/assetfix/internal/rewrite"
	"github.com/thedaily/assetfix/internal/walker"
)

// siteFlags are the per-invocation overrides shared by commands that touch
// the build output.
type siteFlags struct {
	basePath   string
	prefix     string
	extensions []string
	workers    int
}

func (f *siteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.basePath, "base-path", "", "Absolute URL prefix the site is served under (default /thedaily)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Leading characters that mark generated asset paths (default _)")
	cmd.Flags().StringSliceVar(&f.extensions, "ext", nil, "File extensions to process (default .html)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Files processed in parallel")
}

// loadConfig resolves config file, environment, flags and the optional
// positional dist directory, in increasing precedence.
func loadConfig(configPath string, f *siteFlags, args []string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		// Positional paths are relative to the working directory, not the
		// config file.
		dist, err := filepath.Abs(args[0])
		if err != nil {
			return nil, err
		}
		cfg.Site.DistDir = dist
	}
	if f != nil {
		if f.basePath != "" {
			cfg.Site.BasePath = f.basePath
		}
		if f.prefix != "" {
			cfg.Site.AssetPrefix = f.prefix
		}
		if len(f.extensions) > 0 {
			cfg.Site.Extensions = f.extensions
		}
		if f.workers != 0 {
			cfg.Workers = f.workers
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	rewriter *rewrite.Rewriter
	registry *prometheus.Registry
	metrics  *observability.Metrics
	changes  *logging.ChangeLogger

	closers []func() error
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.NewLogger(logOut, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	rw, err := rewrite.New(rewrite.Options{BasePath: cfg.Site.BasePath, AssetPrefix: cfg.Site.AssetPrefix})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		logger:   logger,
		rewriter: rw,
		registry: reg,
		metrics:  observability.NewMetrics(reg),
	}

	if cfg.Logging.ChangeLog != "" {
		changes, closer, err := logging.OpenChangeLog(cfg.ResolvePath(cfg.Logging.ChangeLog))
		if err != nil {
			return nil, err
		}
		a.changes = changes
		a.closers = append(a.closers, closer)
	}

	return a, nil
}

func (a *app) distDir() string {
	return a.cfg.ResolvePath(a.cfg.Site.DistDir)
}

func (a *app) walker(dryRun bool) (*walker.Walker, error) {
	return walker.New(walker.Options{
		Root:       a.distDir(),
		Extensions: a.cfg.Site.Extensions,
		Workers:    a.cfg.Workers,
		DryRun:     dryRun,
		Rewriter:   a.rewriter,
		Logger:     a.logger,
		Metrics:    a.metrics,
		Changes:    a.changes,
	})
}

func (a *app) writeMetrics(path string) error {
	if path == "" {
		path = a.cfg.Metrics.Textfile
	}
	if path == "" {
		return nil
	}
	return observability.WriteTextfile(a.cfg.ResolvePath(path), a.registry)
}

func (a *app) close() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
