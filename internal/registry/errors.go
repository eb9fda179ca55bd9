package registry

import (
	"errors"
	"fmt"

	"github.com/roach88/seeds/internal/script"
)

// MixedReversibleError is returned when a registry holds both Simple and
// Reversible scripts.
type MixedReversibleError struct {
	// SimpleVersion and ReversibleVersion name one offending script of each kind.
	SimpleVersion     int64
	ReversibleVersion int64
}

func (e *MixedReversibleError) Error() string {
	return fmt.Sprintf("cannot mix reversible seeds with simple seeds (simple %d, reversible %d): all seeds should be reversible or simple",
		e.SimpleVersion, e.ReversibleVersion)
}

// DuplicateVersionError is returned when two scripts share (version, kind).
type DuplicateVersionError struct {
	Version int64
	Kind    script.Kind
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate %s seeds for version %d", e.Kind, e.Version)
}

// UnpairedDownError is returned when a down script has no up script with the
// same version.
type UnpairedDownError struct {
	Version int64
}

func (e *UnpairedDownError) Error() string {
	return fmt.Sprintf("down seeds %d has no matching up seeds", e.Version)
}

// IsMixedReversible reports whether err is a MixedReversibleError.
func IsMixedReversible(err error) bool {
	var e *MixedReversibleError
	return errors.As(err, &e)
}

// IsDuplicateVersion reports whether err is a DuplicateVersionError.
func IsDuplicateVersion(err error) bool {
	var e *DuplicateVersionError
	return errors.As(err, &e)
}
