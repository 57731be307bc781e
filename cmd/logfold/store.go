package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/logfold/logfold/internal/dedupstore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the deduplication store",
}

var storeEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List currently valid store entries",
	Long: `Print every unexpired (timestamp, signature) entry in the configured
store, oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Get(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read entries: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No valid entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n",
				time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339), e.Signature)
		}
		fmt.Printf("\n%d valid entr%s\n", len(entries), plural(len(entries), "y", "ies"))
		return nil
	},
}

var storeCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired entries from the store",
	Long: `Force-expire stale entries. Safe to run on a schedule; the pipeline
does its own incidental pruning, this just keeps stores tidy between runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Cleanup(context.Background()); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Expired entries removed\n", green("✓"))
		return nil
	},
}

func openStore() (dedupstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend == dedupstore.BackendMemory {
		fmt.Fprintln(os.Stderr, "Warning: memory backend holds no state between invocations")
	}
	store, err := dedupstore.Open(context.Background(), cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup store: %w", err)
	}
	return store, nil
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

func init() {
	storeCmd.AddCommand(storeEntriesCmd)
	storeCmd.AddCommand(storeCleanupCmd)
	rootCmd.AddCommand(storeCmd)
}
