package dedupstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps one row per entry in a sqlite table. The table and its
// indexes are created lazily on first use; the composite (signature,
// created_at) index makes IsDuplicate a single index probe.
type SQLiteStore struct {
	db     *sql.DB
	table  string
	window time.Duration

	now func() time.Time
}

// NewSQLiteStore opens (creating directory and schema as needed) the database
// at path. prefix namespaces the table name, so several pipelines can share
// one database file.
func NewSQLiteStore(path, prefix string, window time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	// WAL mode keeps concurrent writers from serializing on the whole file.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		table:  tableName(prefix),
		window: window,
		now:    time.Now,
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func tableName(prefix string) string {
	if prefix == "" {
		prefix = "logfold_"
	}
	return prefix + "dedup"
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signature TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s (created_at);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_signature_created_at ON %[1]s (signature, created_at);
	`, s.table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get returns the valid entries, pruned server-side by created_at.
func (s *SQLiteStore) Get(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf(
		"SELECT created_at, signature FROM %s WHERE created_at > ? ORDER BY created_at, id", s.table)
	rows, err := s.db.QueryContext(ctx, query, cutoff(s.now(), s.window))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Add inserts the signature timestamped now.
func (s *SQLiteStore) Add(ctx context.Context, signature string) error {
	query := fmt.Sprintf("INSERT INTO %s (signature, created_at) VALUES (?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, query, signature, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// IsDuplicate probes the (signature, created_at) index for a valid entry.
func (s *SQLiteStore) IsDuplicate(ctx context.Context, signature string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE signature = ? AND created_at > ?)", s.table)
	var exists bool
	err := s.db.QueryRowContext(ctx, query, signature, cutoff(s.now(), s.window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	return exists, nil
}

// Cleanup deletes expired rows.
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at <= ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, cutoff(s.now(), s.window)); err != nil {
		return fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
