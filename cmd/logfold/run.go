package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logfold/logfold/internal/dedupstore"
	"github.com/logfold/logfold/internal/pipeline"
	"github.com/logfold/logfold/internal/record"
	"github.com/logfold/logfold/internal/signature"
	"github.com/logfold/logfold/internal/tracker"
)

// maxLineBytes bounds a single NDJSON record. Records with deep traces and
// large contexts routinely exceed bufio's 64 KiB default.
const maxLineBytes = 4 << 20

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pipe log records through the deduplication pipeline",
	Long: `Read newline-delimited JSON log records and process each through the
deduplication pipeline: fingerprint, suppress repeats within the window,
forward the rest.

With the tracker enabled in configuration, surviving records are filed as
issues; otherwise (or with --dry-run) they are written to stdout as
{"signature": ..., "record": ...} lines.

Examples:
  tail -F app.ndjson | logfold run -c logfold.yaml
  logfold run -c logfold.yaml --input fixtures/records.ndjson --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		flushInterval, _ := cmd.Flags().GetDuration("flush-interval")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := dedupstore.Open(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open dedup store: %w", err)
		}
		defer store.Close()

		var sink pipeline.Sink
		if cfg.Tracker.Enabled && !dryRun {
			client, err := tracker.NewClient(cfg.Tracker.Client)
			if err != nil {
				return err
			}
			sink = tracker.NewIssueSink(client, cfg.Tracker.Labels)
		} else {
			sink = &writerSink{w: os.Stdout}
		}

		gen := signature.NewGenerator(cfg.Signature.GeneratorConfig())
		handler, err := pipeline.New(gen, store, sink, cfg.Pipeline)
		if err != nil {
			return err
		}

		in, closeIn, err := openInput(input)
		if err != nil {
			return err
		}
		defer closeIn()

		g, gctx := errgroup.WithContext(ctx)

		if cfg.Pipeline.Buffered && flushInterval > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(flushInterval)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						if err := handler.Flush(gctx); err != nil {
							log.Printf("[WARN] periodic flush failed: %v", err)
						}
					}
				}
			})
		}

		g.Go(func() error {
			defer stop()
			parser := record.NewParser()
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
			for scanner.Scan() {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				rec, err := parser.Parse(line)
				if err != nil {
					log.Printf("[WARN] skipping malformed record: %v", err)
					continue
				}
				if err := handler.Handle(gctx, rec); err != nil {
					return err
				}
			}
			return scanner.Err()
		})

		runErr := g.Wait()
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}

		// Flush whatever is still buffered, even on a failed run.
		if err := handler.Close(context.Background()); err != nil {
			log.Printf("[WARN] final flush failed: %v", err)
		}
		return runErr
	},
}

// writerSink emits surviving records as NDJSON, signature first.
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *writerSink) Emit(_ context.Context, em pipeline.Emission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.w).Encode(map[string]any{
		"signature": em.Signature,
		"record":    em.Record,
	})
}

func openInput(input string) (io.Reader, func(), error) {
	if input == "" || input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func init() {
	runCmd.Flags().String("input", "-", "NDJSON input file (- for stdin)")
	runCmd.Flags().Bool("dry-run", false, "write survivors to stdout instead of the tracker")
	runCmd.Flags().Duration("flush-interval", 2*time.Second, "periodic flush interval in buffered mode (0 disables)")
	rootCmd.AddCommand(runCmd)
}
