// Package sqlite is the SQLite backend.Adapter.
//
// The database is configured the same way for every connection:
//   - WAL mode for file databases: readers (e.g. `seeds info`) do not block a run
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for SQLite's own locks up to 5 seconds
//   - foreign_keys=ON
//
// SQLite has no advisory locks, so seeders are serialized through an OS file
// lock placed next to the database file. In-memory databases are private to
// the process and use a process-local mutex.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/backend/sqltrack"
	"github.com/roach88/seeds/internal/lock"
)

// Dialect is the SQLite flavour of the tracking table.
var Dialect = sqltrack.Dialect{
	BlobType: "BLOB",
	TimeType: "TIMESTAMP",
	Bind:     func(int) string { return "?" },
}

// Options configures Open.
type Options struct {
	// Table is the tracking table name. Empty means backend.DefaultTable.
	Table string

	// LockTimeout bounds how long Lock waits for another seeder.
	// See lock.Retry.
	LockTimeout time.Duration

	Logger *slog.Logger
}

// Adapter implements backend.Adapter for SQLite.
type Adapter struct {
	*sqltrack.Tracker

	db     *sql.DB
	path   string
	locker lock.Locker
}

var _ backend.Adapter = (*Adapter)(nil)

// Open creates or opens the SQLite database at path.
// The tracking table itself is created by EnsureTrackingTable.
func Open(path string, opts Options) (*Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer; a single connection also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	memory := IsMemory(path)
	if err := applyPragmas(db, memory); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	tracker, err := sqltrack.New(db, opts.Table, Dialect, opts.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	var locker lock.Locker = &lock.Mutex{}
	if !memory {
		locker = lock.NewFileLocker(LockPath(path, tracker.Table()), opts.LockTimeout)
	}

	return &Adapter{
		Tracker: tracker,
		db:      db,
		path:    path,
		locker:  locker,
	}, nil
}

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

// LockPath returns the lock file used for table in the database at path.
func LockPath(path, table string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	return fmt.Sprintf("%s.%s.lock", path, table)
}

func applyPragmas(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !memory {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the database path the adapter was opened with.
func (a *Adapter) Path() string {
	return a.path
}

// DB returns the underlying sql.DB for direct queries.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Lock takes the file lock for the tracking table.
func (a *Adapter) Lock(ctx context.Context) error {
	return backend.Wrap("lock", 0, a.locker.Lock(ctx))
}

// Unlock releases the file lock.
func (a *Adapter) Unlock(ctx context.Context) error {
	return backend.Wrap("unlock", 0, a.locker.Unlock(ctx))
}

// Close closes the database connection.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
