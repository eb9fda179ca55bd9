package seeder

import (
	"errors"
	"fmt"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/script"
)

// ErrorCode categorizes engine failures for reports and metrics.
type ErrorCode string

const (
	// ErrCodeDirty indicates a previous run left a partially applied script.
	ErrCodeDirty ErrorCode = "DIRTY_DATABASE"

	// ErrCodeMissingVersion indicates an applied version has no script.
	ErrCodeMissingVersion ErrorCode = "MISSING_VERSION"

	// ErrCodeChecksumMismatch indicates an applied script was modified.
	ErrCodeChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// ErrCodeResolution indicates the scripts themselves are invalid.
	ErrCodeResolution ErrorCode = "RESOLUTION"

	// ErrCodeBackend indicates a database, tracking table, or lock failure.
	ErrCodeBackend ErrorCode = "BACKEND"

	// ErrCodeUnknown covers anything else.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// DirtyDatabaseError is returned when the tracking table holds a record with
// success=false. Resolving it requires manual intervention.
type DirtyDatabaseError struct {
	Version int64
}

func (e *DirtyDatabaseError) Error() string {
	return fmt.Sprintf("seeds %d is partially applied; fix and remove row from the tracking table", e.Version)
}

// MissingVersionError is returned when an applied version is absent from the
// registry and missing versions are not ignored.
type MissingVersionError struct {
	Version int64
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("seeds %d was previously applied but is missing in the resolved seeds", e.Version)
}

// ChecksumMismatchError is returned when an applied script's content changed.
type ChecksumMismatchError struct {
	Version int64

	// Applied is the checksum recorded at apply time.
	Applied []byte

	// Resolved is the checksum of the script as it exists now.
	Resolved []byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("seeds %d was previously applied but has been modified", e.Version)
}

// IsDirty reports whether err is a DirtyDatabaseError.
// Uses errors.As to handle wrapped errors.
func IsDirty(err error) bool {
	var e *DirtyDatabaseError
	return errors.As(err, &e)
}

// IsMissingVersion reports whether err is a MissingVersionError.
func IsMissingVersion(err error) bool {
	var e *MissingVersionError
	return errors.As(err, &e)
}

// IsChecksumMismatch reports whether err is a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var e *ChecksumMismatchError
	return errors.As(err, &e)
}

// CodeOf classifies err. Engine errors win over the backend errors that may
// be combined with them.
func CodeOf(err error) ErrorCode {
	var (
		nameErr    *script.NameError
		unpaired   *registry.UnpairedDownError
		duplicates *registry.DuplicateVersionError
	)
	switch {
	case err == nil:
		return ""
	case IsDirty(err):
		return ErrCodeDirty
	case IsMissingVersion(err):
		return ErrCodeMissingVersion
	case IsChecksumMismatch(err):
		return ErrCodeChecksumMismatch
	case registry.IsMixedReversible(err), errors.As(err, &duplicates),
		errors.As(err, &unpaired), errors.As(err, &nameErr):
		return ErrCodeResolution
	case backend.IsError(err):
		return ErrCodeBackend
	default:
		return ErrCodeUnknown
	}
}
