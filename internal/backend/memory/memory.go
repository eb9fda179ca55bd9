// Package memory is an in-process backend.Adapter. It keeps the tracking
// table in a map and never executes SQL; an optional exec hook decides
// whether a script body "fails".
package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/lock"
	"github.com/roach88/seeds/internal/script"
)

// ErrNoTable is returned when the tracking table is used before it exists.
var ErrNoTable = errors.New("tracking table does not exist")

// Database is the shared state several adapters can point at, standing in
// for one database server reached by several processes.
type Database struct {
	mu      sync.Mutex
	table   bool
	records map[int64]backend.AppliedRecord
	lock    lock.Mutex
}

// NewDatabase returns an empty database without a tracking table.
func NewDatabase() *Database {
	return &Database{records: make(map[int64]backend.AppliedRecord)}
}

// Put stores rec directly, creating the tracking table if needed.
func (d *Database) Put(rec backend.AppliedRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table = true
	d.records[rec.Version] = rec
}

// Records returns a snapshot ordered by version.
func (d *Database) Records() []backend.AppliedRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]backend.AppliedRecord, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b backend.AppliedRecord) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return out
}

// Record returns the record for version, if any.
func (d *Database) Record(version int64) (backend.AppliedRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[version]
	return r, ok
}

// ExecFunc runs a script body. Returning an error simulates a failed script.
type ExecFunc func(ctx context.Context, s script.Script) error

// Adapter implements backend.Adapter over a Database.
type Adapter struct {
	db   *Database
	exec ExecFunc
	now  func() time.Time

	mu    sync.Mutex
	calls []string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithExec installs the hook that runs script bodies.
func WithExec(fn ExecFunc) Option {
	return func(a *Adapter) { a.exec = fn }
}

// WithClock overrides the applied_at time source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an adapter bound to db.
func New(db *Database, opts ...Option) *Adapter {
	a := &Adapter{
		db:   db,
		exec: func(context.Context, script.Script) error { return nil },
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Calls returns the adapter operations invoked so far, in order.
func (a *Adapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

func (a *Adapter) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *Adapter) EnsureTrackingTable(context.Context) error {
	a.record("ensure")
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.table = true
	return nil
}

func (a *Adapter) DirtyVersion(context.Context) (int64, bool, error) {
	a.record("dirty")
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	if !a.db.table {
		return 0, false, backend.Wrap("dirty version", 0, ErrNoTable)
	}
	var (
		version int64
		dirty   bool
	)
	for v, r := range a.db.records {
		if !r.Success && (!dirty || v < version) {
			version, dirty = v, true
		}
	}
	return version, dirty, nil
}

func (a *Adapter) ListApplied(context.Context) ([]backend.AppliedRecord, error) {
	a.record("list")
	a.db.mu.Lock()
	table := a.db.table
	a.db.mu.Unlock()
	if !table {
		return nil, backend.Wrap("list applied", 0, ErrNoTable)
	}
	return a.db.Records(), nil
}

func (a *Adapter) Lock(ctx context.Context) error {
	a.record("lock")
	return backend.Wrap("lock", 0, a.db.lock.Lock(ctx))
}

func (a *Adapter) Unlock(ctx context.Context) error {
	a.record("unlock")
	return backend.Wrap("unlock", 0, a.db.lock.Unlock(ctx))
}

func (a *Adapter) Apply(ctx context.Context, s script.Script) (time.Duration, error) {
	a.record("apply")
	start := time.Now()
	err := a.exec(ctx, s)
	elapsed := time.Since(start)

	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	if !a.db.table {
		return 0, backend.Wrap("apply", s.Version, ErrNoTable)
	}
	a.db.records[s.Version] = backend.AppliedRecord{
		Version:       s.Version,
		Description:   s.Description,
		Checksum:      slices.Clone(s.Checksum),
		Success:       err == nil,
		AppliedAt:     a.now(),
		ExecutionTime: elapsed,
	}
	if err != nil {
		return elapsed, backend.Wrap("apply", s.Version, err)
	}
	return elapsed, nil
}

func (a *Adapter) Revert(ctx context.Context, s script.Script) (time.Duration, error) {
	a.record("revert")
	start := time.Now()
	err := a.exec(ctx, s)
	elapsed := time.Since(start)

	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	if !a.db.table {
		return 0, backend.Wrap("revert", s.Version, ErrNoTable)
	}
	if err != nil {
		if r, ok := a.db.records[s.Version]; ok {
			r.Success = false
			a.db.records[s.Version] = r
		}
		return elapsed, backend.Wrap("revert", s.Version, err)
	}
	delete(a.db.records, s.Version)
	return elapsed, nil
}

func (a *Adapter) Close() error {
	return nil
}
