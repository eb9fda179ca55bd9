package backend

import (
	"context"
	"time"

	"github.com/roach88/seeds/internal/script"
)

// DefaultTable is the tracking table name used when none is configured.
const DefaultTable = "_seeds"

// AppliedRecord is the persisted proof that a version was applied.
type AppliedRecord struct {
	Version     int64
	Description string

	// Checksum is the script digest snapshot taken at apply time.
	Checksum []byte

	// Success is false for a partially applied (dirty) script.
	Success bool

	AppliedAt     time.Time
	ExecutionTime time.Duration
}

// Adapter is implemented once per database engine.
type Adapter interface {
	// EnsureTrackingTable creates the tracking table if it is absent.
	EnsureTrackingTable(ctx context.Context) error

	// DirtyVersion returns the version of a record with Success=false.
	// dirty is false when the database is clean.
	DirtyVersion(ctx context.Context) (version int64, dirty bool, err error)

	// ListApplied returns every record, in no particular order.
	ListApplied(ctx context.Context) ([]AppliedRecord, error)

	// Lock acquires the lock scoped to the tracking table. A second caller
	// blocks or fails according to the adapter's wait policy.
	Lock(ctx context.Context) error

	// Unlock releases the lock taken by Lock.
	Unlock(ctx context.Context) error

	// Apply executes s and records it. On failure the record is left with
	// Success=false and the error is returned.
	Apply(ctx context.Context, s script.Script) (time.Duration, error)

	// Revert executes the down script s and deletes its record. On failure
	// the record is marked Success=false and the error is returned.
	Revert(ctx context.Context, s script.Script) (time.Duration, error)

	// Close releases connections held by the adapter.
	Close() error
}
