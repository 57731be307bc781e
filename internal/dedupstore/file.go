package dedupstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockAttempts = 3
	lockBackoff  = 50 * time.Millisecond
)

// FileStore persists entries as newline-separated "timestamp:signature" lines
// in a single UTF-8 text file. Every read-modify-write sequence runs under an
// exclusive advisory lock on the file, so multiple processes can share one
// entries file safely.
//
// Failure posture: lock-acquisition timeouts raise ErrLockTimeout for that
// single call, but a read failure degrades Get to "no entries". Deduplication
// is best-effort and must never block delivery of a genuinely new record.
type FileStore struct {
	path   string
	window time.Duration

	// mu serializes goroutines within this process; the flock serializes
	// across processes. flock acquisition is idempotent per *Flock, so
	// in-process callers need their own exclusion.
	mu   sync.Mutex
	lock *flock.Flock

	now func() time.Time
}

// NewFileStore opens (and creates, along with its directory, if missing) the
// entries file at path.
func NewFileStore(path string, window time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		path:   path,
		window: window,
		lock:   flock.New(path),
		now:    time.Now,
	}, nil
}

// Get returns the valid entries, rewriting the file with the pruned set while
// the lock is held.
func (s *FileStore) Get(ctx context.Context) ([]Entry, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.readAndPrune()
}

// Add appends the signature timestamped now.
func (s *FileStore) Add(ctx context.Context, signature string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open entries file: %w", err)
	}
	defer f.Close()

	entry := Entry{Timestamp: s.now().Unix(), Signature: signature}
	if _, err := fmt.Fprintln(f, entry.String()); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// IsDuplicate reports whether a valid entry carries the signature.
func (s *FileStore) IsDuplicate(ctx context.Context, signature string) (bool, error) {
	entries, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return containsValid(entries, signature), nil
}

// Cleanup rewrites the file without expired entries.
func (s *FileStore) Cleanup(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	_, err := s.readAndPrune()
	return err
}

// Close is a no-op; the file handle is opened per call.
func (s *FileStore) Close() error { return nil }

// readAndPrune loads the file, drops corrupted and expired lines, persists
// the pruned set, and returns the valid entries. Callers hold the lock.
//
// A read failure is deliberately not propagated: the store reports no known
// entries and every record looks new, which only risks a duplicate issue, not
// a lost one.
func (s *FileStore) readAndPrune() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[WARN] dedup store: failed to read %s, treating as empty: %v", s.path, err)
		}
		return nil, nil
	}

	limit := cutoff(s.now(), s.window)
	var valid []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		entry, ok := ParseEntry(line)
		if !ok {
			// Corrupted line: skip it, keep processing the rest.
			continue
		}
		if entry.Timestamp > limit {
			valid = append(valid, entry)
		}
	}

	var buf strings.Builder
	for _, e := range valid {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(buf.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to rewrite entries file: %w", err)
	}
	return valid, nil
}

// acquire takes the in-process mutex, then the advisory lock with bounded
// retries. On failure the mutex is released before returning.
func (s *FileStore) acquire(ctx context.Context) error {
	s.mu.Lock()
	if err := s.tryFlock(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *FileStore) tryFlock(ctx context.Context) error {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(lockBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		locked, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to lock entries file: %w", err)
		}
		if locked {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts: %s", ErrLockTimeout, lockAttempts, s.path)
}

func (s *FileStore) release() {
	if err := s.lock.Unlock(); err != nil {
		log.Printf("[WARN] dedup store: failed to unlock %s: %v", s.path, err)
	}
	s.mu.Unlock()
}
