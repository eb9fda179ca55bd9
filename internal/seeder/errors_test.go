package seeder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/script"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		"seeds 20240101000000 is partially applied; fix and remove row from the tracking table",
		(&DirtyDatabaseError{Version: 20240101000000}).Error())
	assert.Equal(t,
		"seeds 5 was previously applied but is missing in the resolved seeds",
		(&MissingVersionError{Version: 5}).Error())
	assert.Equal(t,
		"seeds 7 was previously applied but has been modified",
		(&ChecksumMismatchError{Version: 7}).Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"dirty", &DirtyDatabaseError{Version: 1}, ErrCodeDirty},
		{"wrapped missing", fmt.Errorf("run: %w", &MissingVersionError{Version: 1}), ErrCodeMissingVersion},
		{"checksum", &ChecksumMismatchError{Version: 1}, ErrCodeChecksumMismatch},
		{"mixed", &registry.MixedReversibleError{SimpleVersion: 1, ReversibleVersion: 2}, ErrCodeResolution},
		{"duplicate", &registry.DuplicateVersionError{Version: 1, Kind: script.Simple}, ErrCodeResolution},
		{"unpaired", &registry.UnpairedDownError{Version: 1}, ErrCodeResolution},
		{"bad name", &script.NameError{Name: "x.sql", Reason: "missing version"}, ErrCodeResolution},
		{"backend", backend.Wrap("apply", 1, errors.New("boom")), ErrCodeBackend},
		{"other", errors.New("boom"), ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())

	assert.Empty(t, NewFixedGenerator().Generate())
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "v7 IDs sort by creation time")
}
