package pipeline

import (
	"context"

	"github.com/logfold/logfold/internal/record"
)

// Emission pairs a forwarded record with its computed signature. The record
// payload is never modified; the signature travels out-of-band so the sink
// can embed it wherever it reports the problem.
type Emission struct {
	Record    *record.Record
	Signature string
}

// Sink receives the records that survive deduplication.
type Sink interface {
	Emit(ctx context.Context, em Emission) error
}

// BatchSink is an optional extension for sinks that prefer one delivery per
// flush. The buffered handler uses it when available and falls back to
// per-record Emit otherwise.
type BatchSink interface {
	EmitBatch(ctx context.Context, batch []Emission) error
}
