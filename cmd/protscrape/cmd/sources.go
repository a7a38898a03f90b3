package cmd

import (
	"medresai-scraper/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources in the order they run.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(nil)
		if err != nil {
			osutil.Fatal("failed to load configuration", err)
		}

		t := newTable()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Source", "Enabled", "Max results", "Delay"})
		for _, d := range cfg.Descriptors() {
			t.AppendRow(table.Row{d.Name, d.Enabled, d.MaxResults, d.Delay.String()})
		}
		t.Render()
	},
}
