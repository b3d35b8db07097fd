// Package store holds the engagement database: a single SQLite file with
// per-component schema migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Migration is one forward-only schema change owned by a component.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// SQLiteStore is the engagement database backed by modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu      sync.Mutex // guards migrations and tracked
	tracked bool
}

// pragmas are applied to every new database. modernc.org/sqlite takes
// them as statements rather than DSN parameters.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// New opens the database at path, creating it and its parent directory
// when missing. The special path ":memory:" opens a private in-memory
// database.
func New(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: writes are serialized and :memory: stays a single database.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("open sqlite %q: %s: %w", path, p, err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// DB returns the underlying handle for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path is the file the store was opened from.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Tx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Migrate applies the migrations of component that are not yet recorded
// in _migrations, each in its own transaction, in ascending version order.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	applied, err := s.appliedVersions(ctx, component)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO _migrations (component, version, description, applied_at) VALUES (?, ?, ?, ?)",
				component, m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
	}
	return nil
}

// SchemaVersion is the highest applied migration of component, or 0.
func (s *SQLiteStore) SchemaVersion(ctx context.Context, component string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(version) FROM _migrations WHERE component = ?", component,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version %s: %w", component, err)
	}
	return int(v.Int64), nil
}

// Checkpoint flushes the write-ahead log into the main database file so
// the file can be copied on its own.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.path, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	if s.tracked {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (
		component   TEXT    NOT NULL,
		version     INTEGER NOT NULL,
		description TEXT    NOT NULL,
		applied_at  TEXT    NOT NULL,
		PRIMARY KEY (component, version)
	)`)
	if err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	s.tracked = true
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, component string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations WHERE component = ?", component)
	if err != nil {
		return nil, fmt.Errorf("list migrations %s: %w", component, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
