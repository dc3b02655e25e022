package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNoChanges     = errors.New("no changes")
	ErrUnsupported   = errors.New("not supported")
	ErrDiverged      = errors.New("diverged")
)

// StoreError is a failure reported by the remote object store.
// StatusCode is the HTTP status returned by the hosting service, or 0 when
// the failure did not come from an HTTP response.
type StoreError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("store: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Invalid wraps ErrInvalid with a caller-facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// StatusCode returns the remote status code carried by err, if any.
func StatusCode(err error) int {
	var se *StoreError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
