package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRewriteCmd(configPath *string) *cobra.Command {
	var flags siteFlags
	var dryRun bool
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "rewrite [dist-dir]",
		Short: "Rewrite relative asset paths in built HTML to absolute paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, &flags, args)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			w, err := a.walker(dryRun)
			if err != nil {
				return err
			}
			summary, err := w.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.writeMetrics(metricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}

			verb := "rewrote"
			if dryRun {
				verb = "would rewrite"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d files under %s (base %s)\n",
				verb, summary.Rewritten, summary.Scanned, a.distDir(), displayBase(a.rewriter.BasePath()))
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing files")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")

	return cmd
}

func displayBase(base string) string {
	if base == "" {
		return "/"
	}
	return base
}
