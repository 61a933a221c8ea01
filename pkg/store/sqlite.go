package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite for persistence. It is suitable
// for single-instance deployments where counters and queued jobs must
// survive restarts.
//
// The database runs in WAL mode with a single writer connection; the
// transactional increment path is therefore serialized and atomic.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path. Use ":memory:" for an in-memory
	// database (primarily for tests).
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration

	// Clock overrides the wall clock. Intended for tests.
	Clock func() time.Time
}

// NewSQLiteStore opens (or creates) the database at cfg.Path and
// initializes the schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}

	// SQLite supports a single writer; one connection avoids SQLITE_BUSY
	// churn and makes the increment transaction a total order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, now: cfg.Clock}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv_entries(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}

	if s.expired(expiresAt) {
		// Lazy expiry: drop the row on read, same as the memory store.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Set stores value under key with the given TTL.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrementWithTTL atomically adds delta to the counter under key. The
// read-modify-write runs in a transaction on the single writer connection,
// so concurrent increments observe a total order.
func (s *SQLiteStore) IncrementWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	var raw []byte
	var expiresAt sql.NullInt64

	err = tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&raw, &expiresAt)

	fresh := err == sql.ErrNoRows
	if err != nil && !fresh {
		return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	if !fresh && s.expired(expiresAt) {
		fresh = true
	}

	if fresh {
		// New counter: expiry is set here and never extended afterwards.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at`,
			key, []byte(strconv.FormatInt(delta, 10)), s.expiry(ttl),
		)
		if err != nil {
			return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
		}
		return delta, nil
	}

	current, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, ErrNotCounter
	}
	current += delta

	_, err = tx.ExecContext(ctx,
		`UPDATE kv_entries SET value = ? WHERE key = ?`,
		[]byte(strconv.FormatInt(current, 10)), key,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	return current, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expiry converts a TTL to a unix-millisecond deadline, or nil for no expiry.
func (s *SQLiteStore) expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *SQLiteStore) expired(expiresAt sql.NullInt64) bool {
	return expiresAt.Valid && expiresAt.Int64 <= s.now().UnixMilli()
}
