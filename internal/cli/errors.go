package cli

import (
	"errors"

	"github.com/roach88/seeds/internal/seeder"
)

// CLI-level error codes. Engine failures use seeder.ErrorCode values.
const (
	ErrCodeConfig  = "CONFIG"
	ErrCodeSource  = "SOURCE"
	ErrCodeConnect = "CONNECT"
	ErrCodeWrite   = "WRITE"
)

// stageError tags an error with the setup stage that produced it, so it can
// be reported as a command error rather than a seeding failure.
type stageError struct {
	code string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stage(code string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{code: code, err: err}
}

// classify maps err to an error code and exit code.
func classify(err error) (string, int) {
	var se *stageError
	if errors.As(err, &se) {
		if c := seeder.CodeOf(se.err); c == seeder.ErrCodeResolution {
			return string(c), ExitCommandError
		}
		return se.code, ExitCommandError
	}

	code := seeder.CodeOf(err)
	if code == seeder.ErrCodeResolution {
		return string(code), ExitCommandError
	}
	return string(code), ExitFailure
}
