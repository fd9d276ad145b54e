// Package store is the durable keyed repository of Media Records, backed by
// SQLite. Records are keyed by id with secondary indexes on username and type
// so filtered reads never need a full scan.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Store wraps the SQLite handle. Individual statements are atomic, but the
// compound write operations (Put, Clear, Delete, ImportAll) are serialized
// through mu so two writers on the same instance can never interleave and
// lose records.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the SQLite database at baseDir/mstash.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.mstash.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "mstash.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func (s *Store) ConfigurePool(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		s.db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		s.db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS records (
		  id           TEXT PRIMARY KEY,
		  username     TEXT NOT NULL,
		  type         TEXT NOT NULL,
		  source       TEXT NOT NULL,
		  filename     TEXT NOT NULL,
		  content_type TEXT NOT NULL,
		  saved_at     TEXT NOT NULL,
		  bytes        TEXT NOT NULL,
		  title        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_username ON records(username);
		CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

const allColumns = "id, username, type, source, filename, content_type, saved_at, bytes, title"

// Put inserts the record, or fully replaces the stored record with the same
// id. There is no partial merge: every column is overwritten.
func (s *Store) Put(ctx context.Context, r record.Record) error {
	if r.ID == "" {
		return errors.NewInvalidRequest("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO records (` + allColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			type = excluded.type,
			source = excluded.source,
			filename = excluded.filename,
			content_type = excluded.content_type,
			saved_at = excluded.saved_at,
			bytes = excluded.bytes,
			title = excluded.title
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Username, string(r.Type), r.Source, r.Filename,
		r.ContentType, r.SavedAt, r.Bytes, r.Title,
	)
	if err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// All returns every record currently stored, in unspecified order. Callers
// re-sort with record.SortBySavedAtDesc.
func (s *Store) All(ctx context.Context) ([]record.Record, error) {
	return s.query(ctx, "SELECT "+allColumns+" FROM records")
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+allColumns+" FROM records WHERE id = ?", id)

	r, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return record.Record{}, errors.NewNotFound(id)
	}
	if err != nil {
		return record.Record{}, errors.NewStorage(err)
	}
	return r, nil
}

// ByUsername returns all records for one username via the username index.
func (s *Store) ByUsername(ctx context.Context, username string) ([]record.Record, error) {
	return s.query(ctx,
		"SELECT "+allColumns+" FROM records WHERE username = ?", username)
}

// ByType returns all records of one media type via the type index.
func (s *Store) ByType(ctx context.Context, t record.MediaType) ([]record.Record, error) {
	return s.query(ctx,
		"SELECT "+allColumns+" FROM records WHERE type = ?", string(t))
}

// Usernames returns the distinct usernames present in the store, sorted.
func (s *Store) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT username FROM records ORDER BY username")
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errors.NewStorage(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return users, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, errors.NewStorage(err)
	}
	return n, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// Delete removes the record with the given id: target gone, every other
// record untouched. As a single keyed statement there is no window where the
// store looks empty to a concurrent reader.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return errors.NewStorage(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewStorage(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, errors.NewStorage(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return records, nil
}

func scanRecord(scan func(...any) error) (record.Record, error) {
	var r record.Record
	var typ string
	err := scan(&r.ID, &r.Username, &typ, &r.Source, &r.Filename,
		&r.ContentType, &r.SavedAt, &r.Bytes, &r.Title)
	if err != nil {
		return record.Record{}, err
	}
	r.Type = record.MediaType(typ)
	return r, nil
}
