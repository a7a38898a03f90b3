package cmd

import (
	"fmt"
	"log/slog"
	"medresai-scraper/internal/config"
	"medresai-scraper/internal/notify"
	"medresai-scraper/internal/pipeline"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/lib/osutil"

	"github.com/spf13/cobra"
)

var (
	runTerms   []string
	runSources []string
)

func init() {
	runCmd.Flags().StringArrayVarP(&runTerms, "term", "t", nil, "search term to run instead of the configured ones (repeatable)")
	runCmd.Flags().StringArrayVarP(&runSources, "source", "s", nil, "only run this source (repeatable)")
	rootCmd.AddCommand(runCmd)
}

// narrow keeps the enabled descriptors named in only, or every enabled one
// when only is empty.
func narrow(cfg config.Config, only []string) ([]scrapers.Descriptor, error) {
	enabled := cfg.Enabled()
	if len(only) == 0 {
		return enabled, nil
	}

	wanted := map[string]bool{}
	for _, name := range only {
		resolved, err := resolveSource(name)
		if err != nil {
			return nil, err
		}
		wanted[resolved] = true
	}

	var out []scrapers.Descriptor
	for _, d := range enabled {
		if wanted[d.Name] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, config.ErrNoEnabledSources
	}
	return out, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every search term through every enabled source and save the results.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(runTerms)
		if err != nil {
			osutil.Fatal("failed to load configuration", err)
		}
		descs, err := narrow(cfg, runSources)
		if err != nil {
			osutil.Fatal("failed to select sources", err)
		}

		ctx, cancel := osutil.SignalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			osutil.Fatal("failed to start", err)
		}
		defer a.Close(ctx)

		sources, err := pipeline.Build(a.deps, descs)
		if err != nil {
			osutil.Fatal("failed to build sources", err)
		}
		p, err := pipeline.New(sources, a.sink, a.tel, pipeline.Options{
			TermDelay: cfg.TermDelay(),
		})
		if err != nil {
			osutil.Fatal("failed to create pipeline", err)
		}

		slog.Info("starting protein database scraping", "terms", len(cfg.SearchTerms), "sources", len(sources))
		summary := p.Run(ctx, cfg.SearchTerms)
		slog.Info("scraping finished", "records", summary.Records(), "failed", len(summary.Failed()), "cancelled", summary.Cancelled)

		t := summary.Table()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.Render()

		if !cfg.Notify.Enabled() {
			return
		}
		n, err := notify.New(cfg.Notify)
		if err != nil {
			slog.Warn("create notifier", "err", err)
			return
		}
		subject := fmt.Sprintf("protscrape: %d records", summary.Records())
		err = n.Send(ctx, subject, summary.Report())
		if err != nil {
			slog.Warn("failed to send run summary", "err", err)
		}
	},
}
