package seeder

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/script"
)

// State is the status of one version as seen by Status.
type State string

const (
	// StateInstalled means the version is applied with a matching checksum.
	StateInstalled State = "installed"

	// StatePending means the version has not been applied.
	StatePending State = "pending"

	// StateModified means the version is applied but its script changed.
	StateModified State = "modified"

	// StateDirty means the version's last apply or revert failed.
	StateDirty State = "dirty"

	// StateMissing means the version is applied but has no script.
	StateMissing State = "missing"
)

// StatusEntry describes one version.
type StatusEntry struct {
	Version     int64       `json:"version"`
	Description string      `json:"description"`
	Kind        script.Kind `json:"-"`
	State       State       `json:"state"`

	// Reversible is true when a down script exists for the version.
	Reversible bool `json:"reversible"`

	// AppliedAt and ExecutionTime are zero unless a record exists.
	AppliedAt     time.Time     `json:"applied_at,omitzero"`
	ExecutionTime time.Duration `json:"execution_ns,omitempty"`
}

// Status lists every non-down script and every applied record without a
// script, ordered by version. It takes no lock and never writes beyond
// creating the tracking table.
func (e *Engine) Status(ctx context.Context, reg *registry.Registry, a backend.Adapter) ([]StatusEntry, error) {
	if err := a.EnsureTrackingTable(ctx); err != nil {
		return nil, err
	}
	records, err := a.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]backend.AppliedRecord, len(records))
	for _, rec := range records {
		applied[rec.Version] = rec
	}

	downs := make(map[int64]bool)
	for s := range reg.Iterate() {
		if s.Kind.IsDown() {
			downs[s.Version] = true
		}
	}

	entries := make([]StatusEntry, 0, reg.Len()+len(records))
	for s := range reg.Iterate() {
		if s.Kind.IsDown() {
			continue
		}
		entry := StatusEntry{
			Version:     s.Version,
			Description: s.Description,
			Kind:        s.Kind,
			State:       StatePending,
			Reversible:  downs[s.Version],
		}
		if rec, ok := applied[s.Version]; ok {
			entry.AppliedAt = rec.AppliedAt
			entry.ExecutionTime = rec.ExecutionTime
			switch {
			case !rec.Success:
				entry.State = StateDirty
			case !bytes.Equal(rec.Checksum, s.Checksum):
				entry.State = StateModified
			default:
				entry.State = StateInstalled
			}
		}
		entries = append(entries, entry)
	}

	for _, rec := range records {
		if reg.Has(rec.Version) {
			continue
		}
		state := StateMissing
		if !rec.Success {
			state = StateDirty
		}
		entries = append(entries, StatusEntry{
			Version:       rec.Version,
			Description:   rec.Description,
			State:         state,
			AppliedAt:     rec.AppliedAt,
			ExecutionTime: rec.ExecutionTime,
		})
	}

	slices.SortStableFunc(entries, func(x, y StatusEntry) int {
		return cmp.Compare(x.Version, y.Version)
	})
	e.logger.Debug("status", "scripts", reg.Len(), "records", len(records))
	return entries, nil
}
