package backend

import (
	"errors"
	"fmt"
)

// Error wraps any failure coming from the database driver, the tracking
// table, or the lock.
type Error struct {
	// Op names the adapter operation, e.g. "apply" or "lock".
	Op string

	// Version is the script version involved, or 0.
	Version int64

	Err error
}

func (e *Error) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("while executing seeds: %s %d: %v", e.Op, e.Version, e.Err)
	}
	return fmt.Sprintf("while executing seeds: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *Error for op. A nil err stays nil and an existing
// *Error is returned unchanged.
func Wrap(op string, version int64, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Op: op, Version: version, Err: err}
}

// IsError reports whether err carries a backend failure.
func IsError(err error) bool {
	var be *Error
	return errors.As(err, &be)
}
