package dedupstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the relational backend for multi-host deployments where
// every application server shares one database. Schema and semantics match
// the sqlite backend; consistency is whatever the database provides.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	window time.Duration

	now func() time.Time
}

// NewPostgresStore connects with a pgx pool and creates the table lazily if
// it does not exist yet.
func NewPostgresStore(ctx context.Context, dsn, prefix string, window time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		table:  tableName(prefix),
		window: window,
		now:    time.Now,
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			signature TEXT NOT NULL,
			created_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s (created_at);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_signature_created_at ON %[1]s (signature, created_at);
	`, s.table)
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get returns the valid entries, pruned server-side by created_at.
func (s *PostgresStore) Get(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf(
		"SELECT created_at, signature FROM %s WHERE created_at > $1 ORDER BY created_at, id", s.table)
	rows, err := s.pool.Query(ctx, query, cutoff(s.now(), s.window))
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
func (s *PostgresStore) Add(ctx context.Context, signature string) error {
	query := fmt.Sprintf("INSERT INTO %s (signature, created_at) VALUES ($1, $2)", s.table)
	if _, err := s.pool.Exec(ctx, query, signature, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// IsDuplicate probes the (signature, created_at) index for a valid entry.
func (s *PostgresStore) IsDuplicate(ctx context.Context, signature string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE signature = $1 AND created_at > $2)", s.table)
	var exists bool
	err := s.pool.QueryRow(ctx, query, signature, cutoff(s.now(), s.window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	return exists, nil
}

// Cleanup deletes expired rows.
func (s *PostgresStore) Cleanup(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at <= $1", s.table)
	if _, err := s.pool.Exec(ctx, query, cutoff(s.now(), s.window)); err != nil {
		return fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
