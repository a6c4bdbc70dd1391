package measdata

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a measurement or a requested piece of its
// data does not exist. Read paths return it instead of a storage error so
// callers can translate it to an empty response.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a write that violates a data invariant
// (duplicate bulk write, well count mismatch, unknown measurement, missing
// payload). Validation errors are never retried.
type ValidationError struct {
	msg   string
	cause error
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Unwrap() error { return e.cause }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func validationErr(cause error, format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...), cause: cause}
}

// StorageError wraps a transient store failure that survived local retrying.
// The underlying cause can be accessed via errors.Unwrap.
type StorageError struct {
	Op     string
	MeasID int64
	cause  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s failed for meas %d: %v", e.Op, e.MeasID, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }

// Retryable marks the failure as transient: the same request may succeed later.
func (e *StorageError) Retryable() bool { return true }

func storageErr(op string, measID int64, cause error) *StorageError {
	return &StorageError{Op: op, MeasID: measID, cause: cause}
}
