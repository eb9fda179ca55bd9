// Package postgres is the PostgreSQL backend.Adapter.
//
// All work happens on one dedicated connection because advisory locks are
// held by the session that took them. PostgreSQL has transactional DDL, so a
// failed script leaves no partial schema behind; the dirty marker is still
// recorded so an operator looks at the failure before the next run.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/backend/sqltrack"
	"github.com/roach88/seeds/internal/lock"
)

// Dialect is the PostgreSQL flavour of the tracking table.
var Dialect = sqltrack.Dialect{
	BlobType: "BYTEA",
	TimeType: "TIMESTAMPTZ",
	Bind:     func(n int) string { return fmt.Sprintf("$%d", n) },
}

// Options configures Open.
type Options struct {
	// Table is the tracking table name. Empty means backend.DefaultTable.
	Table string

	// LockTimeout bounds how long Lock waits for the advisory lock.
	// See lock.Retry.
	LockTimeout time.Duration

	Logger *slog.Logger
}

// Adapter implements backend.Adapter for PostgreSQL.
type Adapter struct {
	*sqltrack.Tracker

	db      *sql.DB
	conn    *sql.Conn
	lockID  int64
	timeout time.Duration
}

var _ backend.Adapter = (*Adapter)(nil)

// Open connects to the database described by dsn.
func Open(ctx context.Context, dsn string, opts Options) (*Adapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var database string
	if err := conn.QueryRowContext(ctx, "SELECT current_database()").Scan(&database); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("query current database: %w", err)
	}

	tracker, err := sqltrack.New(conn, opts.Table, Dialect, opts.Logger)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	return &Adapter{
		Tracker: tracker,
		db:      db,
		conn:    conn,
		lockID:  LockID(database, tracker.Table()),
		timeout: opts.LockTimeout,
	}, nil
}

// LockID derives the advisory lock key for a tracking table using FNV-1a.
// The same database and table always produce the same key.
func LockID(database, table string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(database + "." + table))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // masked to non-negative range
}

// Lock takes the session advisory lock, retrying while another seeder holds it.
func (a *Adapter) Lock(ctx context.Context) error {
	err := lock.Retry(ctx, a.timeout, func() error {
		var acquired bool
		if err := a.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.lockID).Scan(&acquired); err != nil {
			return fmt.Errorf("pg_try_advisory_lock(%d): %w", a.lockID, err)
		}
		if !acquired {
			return fmt.Errorf("pg_try_advisory_lock(%d): %w", a.lockID, lock.ErrHeld)
		}
		return nil
	})
	return backend.Wrap("lock", 0, err)
}

// Unlock releases the advisory lock.
func (a *Adapter) Unlock(ctx context.Context) error {
	var released bool
	if err := a.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", a.lockID).Scan(&released); err != nil {
		return backend.Wrap("unlock", 0, fmt.Errorf("pg_advisory_unlock(%d): %w", a.lockID, err))
	}
	if !released {
		return backend.Wrap("unlock", 0, fmt.Errorf("pg_advisory_unlock(%d): %w", a.lockID, lock.ErrNotHeld))
	}
	return nil
}

// Close returns the dedicated connection and closes the pool.
func (a *Adapter) Close() error {
	if a.conn != nil {
		a.conn.Close()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
