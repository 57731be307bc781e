package dedupstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory behind a mutex. It shares
// nothing across processes; it exists for dry runs, tests, and single-process
// deployments where persistence across restarts does not matter.
type MemoryStore struct {
	window time.Duration

	mu      sync.Mutex
	entries []Entry

	now func() time.Time
}

// NewMemoryStore returns an empty in-memory store with the given window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{window: window, now: time.Now}
}

// Get returns the valid entries and prunes expired ones in place.
func (s *MemoryStore) Get(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Add appends the signature timestamped now.
func (s *MemoryStore) Add(_ context.Context, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Timestamp: s.now().Unix(), Signature: signature})
	return nil
}

// IsDuplicate reports whether a valid entry carries the signature.
func (s *MemoryStore) IsDuplicate(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return containsValid(s.entries, signature), nil
}

// Cleanup discards expired entries.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

// prune drops expired entries; callers hold the mutex.
func (s *MemoryStore) prune() {
	limit := cutoff(s.now(), s.window)
	valid := s.entries[:0]
	for _, e := range s.entries {
		if e.Timestamp > limit {
			valid = append(valid, e)
		}
	}
	s.entries = valid
}
