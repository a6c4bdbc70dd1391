package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an object does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("object not found")

// DeleteBatchLimit is the maximum number of keys per delete request,
// matching the S3 DeleteObjects limit.
const DeleteBatchLimit = 1000

// Store is an abstraction for the object store holding bulk measurement data
// (subwell arrays and image codestreams). All operations address objects by
// a measurement id and a logical key; the physical key layout is an
// implementation detail (see MakeKey).
type Store interface {
	// Exists reports whether an object exists.
	Exists(ctx context.Context, measID int64, key string) (bool, error)

	// Size returns the size of an object in bytes.
	// Returns ErrNotFound if the object does not exist.
	Size(ctx context.Context, measID int64, key string) (int64, error)

	// Get returns the full contents of an object.
	Get(ctx context.Context, measID int64, key string) ([]byte, error)

	// GetRange returns length bytes starting at offset.
	// A length <= 0 returns the whole object, ignoring offset.
	GetRange(ctx context.Context, measID int64, key string, offset int64, length int) ([]byte, error)

	// Put writes an object. Stored objects are treated as immutable; Put is
	// only called once per key by well-behaved callers.
	Put(ctx context.Context, measID int64, key string, data []byte) error

	// List returns the logical keys of all objects under the given logical
	// prefix, following pagination until the listing is complete.
	List(ctx context.Context, measID int64, prefix string) ([]string, error)

	// DeleteBatch deletes the given logical keys, partitioned into groups of
	// at most DeleteBatchLimit keys per underlying request.
	DeleteBatch(ctx context.Context, measID int64, keys []string) error
}

// UploadError indicates that an upload failed after exhausting all retry
// attempts. The last underlying cause can be accessed via errors.Unwrap.
type UploadError struct {
	MeasID int64
	Key    string
	Tries  int
	cause  error
}

// NewUploadError wraps the last cause of a retry-exhausted upload.
func NewUploadError(measID int64, key string, tries int, cause error) *UploadError {
	return &UploadError{MeasID: measID, Key: key, Tries: tries, cause: cause}
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed after %d attempts for meas %d key %q: %v", e.Tries, e.MeasID, e.Key, e.cause)
}

func (e *UploadError) Unwrap() error { return e.cause }

// Retryable marks the failure as transient: the same request may succeed later.
func (e *UploadError) Retryable() bool { return true }

// SplitKeys partitions keys into groups of at most max entries.
func SplitKeys(keys []string, max int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	groups := make([][]string, 0, (len(keys)+max-1)/max)
	for len(keys) > max {
		groups = append(groups, keys[:max])
		keys = keys[max:]
	}
	return append(groups, keys)
}
