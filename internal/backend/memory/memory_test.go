package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/script"
)

func TestAdapter_ApplyAndRevert(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db := NewDatabase()
	a := New(db, WithClock(func() time.Time { return fixed }))

	require.NoError(t, a.EnsureTrackingTable(ctx))

	up := script.New(1, "create", script.ReversibleUp, "CREATE TABLE t (id INT);", script.SHA384)
	_, err := a.Apply(ctx, up)
	require.NoError(t, err)

	rec, ok := db.Record(1)
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, up.Checksum, rec.Checksum)
	assert.Equal(t, fixed, rec.AppliedAt)

	down := script.New(1, "create", script.ReversibleDown, "DROP TABLE t;", script.SHA384)
	_, err = a.Revert(ctx, down)
	require.NoError(t, err)
	_, ok = db.Record(1)
	assert.False(t, ok)

	assert.Equal(t, []string{"ensure", "apply", "revert"}, a.Calls())
}

func TestAdapter_FailedApplyLeavesDirtyMarker(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	a := New(db, WithExec(func(context.Context, script.Script) error {
		return errors.New("syntax error")
	}))
	require.NoError(t, a.EnsureTrackingTable(ctx))

	_, err := a.Apply(ctx, script.New(3, "bad", script.Simple, "SELEC 1;", script.SHA384))
	require.Error(t, err)
	assert.True(t, backend.IsError(err))

	version, dirty, err := a.DirtyVersion(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
	assert.Equal(t, int64(3), version)
}

func TestAdapter_FailedRevertMarksDirty(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	db.Put(backend.AppliedRecord{Version: 2, Success: true})
	a := New(db, WithExec(func(context.Context, script.Script) error {
		return errors.New("cannot drop")
	}))

	_, err := a.Revert(ctx, script.New(2, "x", script.ReversibleDown, "DROP TABLE x;", script.SHA384))
	require.Error(t, err)

	rec, ok := db.Record(2)
	require.True(t, ok)
	assert.False(t, rec.Success)
}

func TestAdapter_RequiresTable(t *testing.T) {
	ctx := context.Background()
	a := New(NewDatabase())

	_, _, err := a.DirtyVersion(ctx)
	assert.ErrorIs(t, err, ErrNoTable)
	_, err = a.ListApplied(ctx)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestAdapter_SharedLock(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	first, second := New(db), New(db)

	require.NoError(t, first.Lock(ctx))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := second.Lock(short)
	require.Error(t, err)
	assert.True(t, backend.IsError(err))

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx))
	require.NoError(t, second.Unlock(ctx))
}

func TestDatabase_RecordsOrdered(t *testing.T) {
	db := NewDatabase()
	db.Put(backend.AppliedRecord{Version: 3})
	db.Put(backend.AppliedRecord{Version: 1})
	db.Put(backend.AppliedRecord{Version: 2})

	var got []int64
	for _, r := range db.Records() {
		got = append(got, r.Version)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}
