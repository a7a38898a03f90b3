package cmd

import (
	"fmt"
	"medresai-scraper/internal/config"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "protscrape",
	Short: "protscrape collects protein, antibody and epitope reference data from public biomedical databases.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath,
		"config", "c",
		config.DefaultPath,
		"path to the run configuration (json5 or yaml), a missing file means defaults",
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
