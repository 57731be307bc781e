// logfold reads application log records, collapses repeat occurrences of the
// same problem via signature-based deduplication, and forwards what remains
// to an issue tracker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logfold/logfold/internal/config"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "logfold",
	Short: "Deduplicate log events into issue reports",
	Long: `logfold turns raw application log records into deduplicated issue reports.

Each record is fingerprinted into a stable signature; signatures seen within
the sliding deduplication window are suppressed, everything else is forwarded
downstream (an issue tracker, or stdout in dry runs).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the shared configuration honoring the --config flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
