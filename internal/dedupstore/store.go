// Package dedupstore persists recently-seen signatures inside a sliding time
// window and answers duplicate-membership queries.
//
// A Store holds (timestamp, signature) entries. An entry is valid while
// now - timestamp < window; Get, IsDuplicate, and Cleanup all apply that one
// predicate, so a signature stops being a duplicate at the exact moment
// cleanup would discard it.
//
// Five backends implement the interface: an in-process memory store, a
// flock-guarded flat file, two relational variants (sqlite, postgres), and a
// redis sorted set. The orchestrator depends only on the interface.
package dedupstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is one persisted (timestamp, signature) pair. Timestamp is unix
// seconds.
type Entry struct {
	Timestamp int64
	Signature string
}

// String renders the entry in the text form used by the file backend.
func (e Entry) String() string {
	return fmt.Sprintf("%d:%s", e.Timestamp, e.Signature)
}

// ParseEntry parses the "timestamp:signature" text form. Corrupted lines
// (missing separator, non-numeric timestamp, empty signature) report false;
// callers skip them rather than failing.
func ParseEntry(line string) (Entry, bool) {
	ts, sig, found := strings.Cut(line, ":")
	if !found || sig == "" {
		return Entry{}, false
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Timestamp: n, Signature: sig}, true
}

// ErrLockTimeout is returned when the file backend exhausts its lock-
// acquisition retries. The failure applies to the single call only; the
// caller decides whether to proceed without deduplication.
var ErrLockTimeout = errors.New("dedup store: could not acquire file lock")

// Store is the capability interface shared by all backends.
//
// Two processes may both see IsDuplicate == false for the same signature and
// both forward the record. That race is accepted: the pipeline promises
// at-least-once forwarding, and serializing writers across processes to close
// it would cost more than the occasional duplicate issue.
type Store interface {
	// Get returns the currently valid (unexpired) entries.
	Get(ctx context.Context) ([]Entry, error)

	// Add records the signature as seen now. Re-adding an existing
	// signature refreshes its presence, sliding the window forward.
	Add(ctx context.Context, signature string) error

	// IsDuplicate reports whether a valid entry with exactly this
	// signature exists.
	IsDuplicate(ctx context.Context, signature string) (bool, error)

	// Cleanup discards expired entries. Idempotent; safe to run on a
	// schedule independent of read/write traffic.
	Cleanup(ctx context.Context) error

	// Close releases backend resources (pools, clients, handles).
	Close() error
}

// containsValid reports whether entries holds the signature. Entries are
// assumed already filtered to the valid window.
func containsValid(entries []Entry, signature string) bool {
	for _, e := range entries {
		if e.Signature == signature {
			return true
		}
	}
	return false
}

// cutoff returns the newest timestamp that is already expired for the given
// window: entries with Timestamp > cutoff are valid.
func cutoff(now time.Time, window time.Duration) int64 {
	return now.Add(-window).Unix()
}
