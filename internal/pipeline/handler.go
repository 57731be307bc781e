// Package pipeline orchestrates deduplication: it fingerprints each incoming
// record, consults the store, suppresses repeats, and forwards the rest to a
// downstream sink.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/logfold/logfold/internal/dedupstore"
	"github.com/logfold/logfold/internal/record"
	"github.com/logfold/logfold/internal/signature"
)

// OverflowPolicy decides what happens when the buffer is already full and
// another record arrives.
type OverflowPolicy string

const (
	// OverflowFlush flushes the buffer to make room.
	OverflowFlush OverflowPolicy = "flush"
	// OverflowDrop discards the incoming record.
	OverflowDrop OverflowPolicy = "drop"
)

// Config controls handler behavior.
type Config struct {
	// Buffered selects batched operation: records accumulate and are
	// deduplicated together on Flush. When false every record is handled
	// immediately.
	Buffered bool `yaml:"buffered"`
	// BufferLimit is the buffered-mode capacity. Default 50.
	BufferLimit int `yaml:"buffer_limit"`
	// Overflow picks the full-buffer behavior. Default flush.
	Overflow OverflowPolicy `yaml:"overflow"`
	// FailOpen forwards records when the store errors out, trading the
	// occasional duplicate issue for never losing an alert. When false,
	// store errors surface to the caller and the record is not forwarded.
	FailOpen bool `yaml:"fail_open"`
}

// DefaultConfig returns synchronous, fail-open handling.
func DefaultConfig() Config {
	return Config{
		Buffered:    false,
		BufferLimit: 50,
		Overflow:    OverflowFlush,
		FailOpen:    true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BufferLimit <= 0 {
		return fmt.Errorf("buffer_limit must be positive (got %d)", c.BufferLimit)
	}
	switch c.Overflow {
	case OverflowFlush, OverflowDrop:
	default:
		return fmt.Errorf("unknown overflow policy %q (want flush or drop)", c.Overflow)
	}
	return nil
}

// Handler is the deduplication orchestrator. It is safe for concurrent use;
// cross-process correctness is delegated to the store backend's own locking.
//
// Suppressed duplicates are still recorded in the store: every repeat
// occurrence refreshes its signature's window, so a chronically recurring
// problem stays suppressed instead of resurfacing once its first entry ages
// out.
type Handler struct {
	cfg   Config
	gen   *signature.Generator
	store dedupstore.Store
	sink  Sink

	mu  sync.Mutex
	buf []*record.Record
}

// New builds a Handler. The sink may additionally implement BatchSink to
// receive buffered flushes as a single delivery.
func New(gen *signature.Generator, store dedupstore.Store, sink Sink, cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &Handler{cfg: cfg, gen: gen, store: store, sink: sink}, nil
}

// Handle processes one record. In synchronous mode it deduplicates and
// forwards immediately; in buffered mode it enqueues, honoring the overflow
// policy when the buffer is full.
func (h *Handler) Handle(ctx context.Context, rec *record.Record) error {
	if !h.cfg.Buffered {
		sig := h.gen.Generate(rec)
		forward, err := h.admit(ctx, sig)
		if err != nil {
			return err
		}
		if !forward {
			return nil
		}
		return h.sink.Emit(ctx, Emission{Record: rec, Signature: sig})
	}

	h.mu.Lock()
	if len(h.buf) >= h.cfg.BufferLimit {
		if h.cfg.Overflow == OverflowDrop {
			h.mu.Unlock()
			log.Printf("[WARN] pipeline: buffer full (%d records), dropping record", h.cfg.BufferLimit)
			return nil
		}
		buf := h.takeBufferLocked()
		h.buf = append(h.buf, rec)
		h.mu.Unlock()
		return h.flush(ctx, buf)
	}
	h.buf = append(h.buf, rec)
	h.mu.Unlock()
	return nil
}

// Flush deduplicates and forwards everything currently buffered. It is a
// no-op in synchronous mode or when the buffer is empty.
func (h *Handler) Flush(ctx context.Context) error {
	h.mu.Lock()
	buf := h.takeBufferLocked()
	h.mu.Unlock()
	if len(buf) == 0 {
		return nil
	}
	return h.flush(ctx, buf)
}

// Close flushes any buffered records. The store is not closed here; its
// lifecycle belongs to whoever opened it.
func (h *Handler) Close(ctx context.Context) error {
	return h.Flush(ctx)
}

func (h *Handler) takeBufferLocked() []*record.Record {
	buf := h.buf
	h.buf = nil
	return buf
}

// flush runs the buffered-mode batch: duplicates are recorded and dropped,
// survivors are forwarded together.
func (h *Handler) flush(ctx context.Context, buf []*record.Record) error {
	var batch []Emission
	for _, rec := range buf {
		sig := h.gen.Generate(rec)
		forward, err := h.admit(ctx, sig)
		if err != nil {
			return err
		}
		if forward {
			batch = append(batch, Emission{Record: rec, Signature: sig})
		}
	}
	if len(batch) == 0 {
		return nil
	}

	if bs, ok := h.sink.(BatchSink); ok {
		return bs.EmitBatch(ctx, batch)
	}
	for _, em := range batch {
		if err := h.sink.Emit(ctx, em); err != nil {
			return err
		}
	}
	return nil
}

// admit decides whether a record with this signature is forwarded, and
// records the occurrence in the store either way. Store errors follow the
// configured posture: fail-open forwards the record without bookkeeping,
// fail-closed returns the error.
func (h *Handler) admit(ctx context.Context, sig string) (forward bool, err error) {
	dup, err := h.store.IsDuplicate(ctx, sig)
	if err != nil {
		if h.cfg.FailOpen {
			log.Printf("[WARN] pipeline: duplicate check failed, forwarding record unchecked: %v", err)
			return true, nil
		}
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}

	if err := h.store.Add(ctx, sig); err != nil {
		if h.cfg.FailOpen {
			log.Printf("[WARN] pipeline: failed to record signature: %v", err)
			return !dup, nil
		}
		return false, fmt.Errorf("failed to record signature: %w", err)
	}
	return !dup, nil
}
