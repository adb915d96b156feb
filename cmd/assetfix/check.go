package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thedaily/assetfix/internal/audit"
	"github.com/thedaily/assetfix/internal/walker"
)

func newCheckCmd(configPath *string) *cobra.Command {
	var flags siteFlags
	var format string

	cmd := &cobra.Command{
		Use:   "check [dist-dir]",
		Short: "Fail if built HTML still references generated assets by relative path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, &flags, args)
			if err != nil {
				return err
			}
			root := cfg.ResolvePath(cfg.Site.DistDir)

			files, err := walker.Files(root, cfg.Site.Extensions)
			if err != nil {
				return err
			}
			findings, err := audit.ScanFiles(root, files, cfg.Site.AssetPrefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "", "text":
				for _, f := range findings {
					if _, err := fmt.Fprintln(out, f.String()); err != nil {
						return err
					}
				}
			case "json":
				if findings == nil {
					findings = []audit.Finding{}
				}
				data, err := json.MarshalIndent(findings, "", "  ")
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(out, string(data)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			if len(findings) > 0 {
				return fmt.Errorf("%d relative asset reference(s) in %d file(s) checked", len(findings), len(files))
			}
			if format != "json" {
				_, err = fmt.Fprintf(out, "%d files ok\n", len(files))
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")

	return cmd
}
