package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thedaily/assetfix/internal/config"
	"github.com/thedaily/assetfix/internal/slugmap"
)

func newSlugCmd(configPath *string) *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "slug <slug>",
		Short: "Translate an article slug between English and French",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := loadSlugMap(*configPath)
			if err != nil {
				return err
			}

			lookup, from := m.FR, "english"
			if reverse {
				lookup, from = m.EN, "french"
			}
			out, ok := lookup(args[0])
			if !ok {
				return fmt.Errorf("no translation for %s slug %q", from, args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Translate a French slug to English")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every EN/FR slug pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := loadSlugMap(*configPath)
			if err != nil {
				return err
			}
			for _, e := range m.Entries() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.EN, e.FR); err != nil {
					return err
				}
			}
			return nil
		},
	})

	cmd.AddCommand(newSlugAddCmd(configPath))

	return cmd
}

func newSlugAddCmd(configPath *string) *cobra.Command {
	var seriesName, period string

	cmd := &cobra.Command{
		Use:   "add [<en-slug> <fr-slug>]",
		Short: "Record a new article translation in the slug map file",
		Long: "Record a new article translation. Pass both slugs, or derive them with\n" +
			"--series and --period (e.g. --series \"Consumer Price Index\" --period 2025-11).",
		Args: func(cmd *cobra.Command, args []string) error {
			if seriesName != "" || period != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry slugmap.Entry
			if len(args) == 2 {
				entry = slugmap.Entry{EN: args[0], FR: args[1]}
			} else {
				if seriesName == "" || period == "" {
					return errors.New("--series and --period must be given together")
				}
				generated, err := slugmap.Generate(seriesName, period)
				if err != nil {
					return err
				}
				entry = generated
			}

			m, path, err := loadSlugMap(*configPath)
			if err != nil {
				return err
			}
			if path == "" {
				return errors.New("slugMap.path must be configured to add entries")
			}
			if err := m.Add(entry.EN, entry.FR); err != nil {
				return err
			}
			if err := slugmap.Save(path, m); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d articles)\n", entry.EN, entry.FR, m.Len())
			return err
		},
	}
	cmd.Flags().StringVar(&seriesName, "series", "", "Data series the article covers, e.g. \"Consumer Price Index\"")
	cmd.Flags().StringVar(&period, "period", "", "Reference month of the release (YYYY-MM)")

	return cmd
}

func loadSlugMap(configPath string) (*slugmap.Map, string, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, "", err
	}
	path := cfg.ResolvePath(cfg.SlugMap.Path)
	m, err := slugmap.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}
