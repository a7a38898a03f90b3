package cmd

import (
	"fmt"
	"log/slog"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/scrapers/registry"
	"medresai-scraper/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeMaxResults int

func init() {
	scrapeCmd.Flags().IntVarP(&scrapeMaxResults, "max-results", "n", 0, "override the configured result bound")
	rootCmd.AddCommand(scrapeCmd)
}

func findDescriptor(descs []scrapers.Descriptor, name string) (scrapers.Descriptor, bool) {
	for _, d := range descs {
		if d.Name == name {
			return d, true
		}
	}
	return scrapers.Descriptor{}, false
}

func printRecords(cmd *cobra.Command, records []record.Record) {
	columns := record.Columns(records)
	t := newTable()
	t.SetOutputMirror(cmd.OutOrStdout())

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range records {
		values := record.Row(r, columns)
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <source> <term>",
	Short: "Run a single source for a single search term, print the records and save them.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name, err := resolveSource(args[0])
		if err != nil {
			osutil.Fatal("failed to select source", err)
		}
		term := args[1]

		cfg, err := loadConfig([]string{term})
		if err != nil {
			osutil.Fatal("failed to load configuration", err)
		}
		desc, _ := findDescriptor(cfg.Descriptors(), name)
		if scrapeMaxResults > 0 {
			desc.MaxResults = scrapeMaxResults
		}

		ctx, cancel := osutil.SignalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			osutil.Fatal("failed to start", err)
		}
		defer a.Close(ctx)

		scraper, err := registry.New(a.deps, desc)
		if err != nil {
			osutil.Fatal("failed to build source", err)
		}
		batch, err := scraper.Fetch(ctx, term, desc.MaxResults)
		if err != nil {
			slog.Warn("fetch interrupted", "err", err)
			return
		}
		for _, skip := range batch.Skipped {
			slog.Warn("skipped", "source", name, "reason", skip.String())
		}
		if batch.Empty() {
			fmt.Fprintf(cmd.OutOrStdout(), "no records found for %q in %s\n", term, name)
			return
		}

		printRecords(cmd, batch.Records)
		artifact, err := a.sink.Write(ctx, batch, desc, term)
		if err != nil {
			osutil.Fatal("failed to save records", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %d records to %s\n", artifact.Rows, artifact.Path)
	},
}
