// Package sqltrack implements the tracking-table half of backend.Adapter on
// top of database/sql. Engine-specific adapters embed a Tracker and add their
// own connection setup and locking.
package sqltrack

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/script"
)

// Conn is the subset of *sql.DB and *sql.Conn the tracker needs.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Dialect holds the SQL differences between engines.
type Dialect struct {
	// BlobType is the column type for checksums.
	BlobType string

	// TimeType is the column type for applied_at.
	TimeType string

	// Bind returns the placeholder for the n-th (1-based) parameter.
	Bind func(n int) string
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable rejects table names that would need quoting.
func ValidateTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("invalid tracking table name %q", name)
	}
	return nil
}

// Tracker reads and writes the tracking table and executes script bodies.
type Tracker struct {
	conn    Conn
	table   string
	dialect Dialect
	logger  *slog.Logger

	// Now stamps applied_at. Defaults to time.Now.
	Now func() time.Time
}

// New returns a tracker for table on conn.
func New(conn Conn, table string, dialect Dialect, logger *slog.Logger) (*Tracker, error) {
	if table == "" {
		table = backend.DefaultTable
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		conn:    conn,
		table:   table,
		dialect: dialect,
		logger:  logger,
		Now:     time.Now,
	}, nil
}

// Table returns the tracking table name.
func (t *Tracker) Table() string {
	return t.table
}

// q substitutes {table} and {N} placeholders.
func (t *Tracker) q(query string) string {
	query = strings.ReplaceAll(query, "{table}", t.table)
	for n := 6; n >= 1; n-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("{%d}", n), t.dialect.Bind(n))
	}
	return query
}

// EnsureTrackingTable creates the tracking table if it is absent.
func (t *Tracker) EnsureTrackingTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version      BIGINT PRIMARY KEY,
			description  TEXT NOT NULL,
			checksum     %s NOT NULL,
			success      BOOLEAN NOT NULL,
			applied_at   %s NOT NULL,
			execution_ms BIGINT NOT NULL
		)`, t.table, t.dialect.BlobType, t.dialect.TimeType)

	if _, err := t.conn.ExecContext(ctx, ddl); err != nil {
		return backend.Wrap("ensure tracking table", 0, err)
	}
	return nil
}

// DirtyVersion returns the lowest version whose record has success=false.
func (t *Tracker) DirtyVersion(ctx context.Context) (int64, bool, error) {
	var version int64
	err := t.conn.QueryRowContext(ctx, t.q(`
		SELECT version FROM {table}
		WHERE NOT success
		ORDER BY version ASC
		LIMIT 1
	`)).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, backend.Wrap("dirty version", 0, err)
	}
	return version, true, nil
}

// ListApplied returns every record ordered by version.
func (t *Tracker) ListApplied(ctx context.Context) ([]backend.AppliedRecord, error) {
	rows, err := t.conn.QueryContext(ctx, t.q(`
		SELECT version, description, checksum, success, applied_at, execution_ms
		FROM {table}
		ORDER BY version ASC
	`))
	if err != nil {
		return nil, backend.Wrap("list applied", 0, err)
	}
	defer rows.Close()

	var records []backend.AppliedRecord
	for rows.Next() {
		var (
			rec backend.AppliedRecord
			ms  int64
		)
		if err := rows.Scan(&rec.Version, &rec.Description, &rec.Checksum, &rec.Success, &rec.AppliedAt, &ms); err != nil {
			return nil, backend.Wrap("list applied", 0, err)
		}
		rec.ExecutionTime = time.Duration(ms) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, backend.Wrap("list applied", 0, err)
	}
	return records, nil
}

// Apply runs the script body and inserts a successful record in one
// transaction. When the body fails the transaction is rolled back and a
// success=false record is written in its place.
func (t *Tracker) Apply(ctx context.Context, s script.Script) (time.Duration, error) {
	start := time.Now()
	err := t.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.Body); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, t.q(`
			INSERT INTO {table} (version, description, checksum, success, applied_at, execution_ms)
			VALUES ({1}, {2}, {3}, TRUE, {4}, {5})
		`), s.Version, s.Description, s.Checksum, t.Now().UTC(), time.Since(start).Milliseconds())
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, t.failed(ctx, "apply", s, elapsed, err)
	}
	return elapsed, nil
}

// Revert runs the down script body and deletes the version's record in one
// transaction. When the body fails the record is flagged success=false.
func (t *Tracker) Revert(ctx context.Context, s script.Script) (time.Duration, error) {
	start := time.Now()
	err := t.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.Body); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, t.q(`DELETE FROM {table} WHERE version = {1}`), s.Version)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, t.failed(ctx, "revert", s, elapsed, err)
	}
	return elapsed, nil
}

func (t *Tracker) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", errBegin, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// errBegin marks failures that happened before the script body ran.
var errBegin = errors.New("begin tx")

// failed wraps a failed apply or revert and leaves the dirty marker for s,
// unless the transaction never started and the body did not run.
func (t *Tracker) failed(ctx context.Context, op string, s script.Script, elapsed time.Duration, err error) error {
	err = backend.Wrap(op, s.Version, err)
	if errors.Is(err, errBegin) {
		return err
	}
	if derr := t.markDirty(ctx, s, elapsed); derr != nil {
		return multierror.Append(err, derr)
	}
	return err
}

// markDirty writes the dirty marker for s. It runs even if ctx was cancelled
// mid-script so the failure stays visible to the next invocation.
func (t *Tracker) markDirty(ctx context.Context, s script.Script, elapsed time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	_, err := t.conn.ExecContext(ctx, t.q(`
		INSERT INTO {table} (version, description, checksum, success, applied_at, execution_ms)
		VALUES ({1}, {2}, {3}, FALSE, {4}, {5})
		ON CONFLICT (version) DO UPDATE SET success = FALSE
	`), s.Version, s.Description, s.Checksum, t.Now().UTC(), elapsed.Milliseconds())
	if err != nil {
		t.logger.Error("failed to record dirty marker",
			"table", t.table,
			"version", s.Version,
			"error", err)
		return fmt.Errorf("record dirty marker for %d: %w", s.Version, err)
	}
	return nil
}
