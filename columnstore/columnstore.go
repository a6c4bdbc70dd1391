// Package columnstore persists well-level numeric columns in a relational
// store: one row per (measurement, column), values as a float4 array.
// Rows are write-once; the only mutation is delete-by-measurement.
package columnstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no data exists for the requested column.
var ErrNotFound = errors.New("column data not found")

// DataExistsError rejects a second bulk write for a measurement.
type DataExistsError struct {
	MeasID int64
}

func (e *DataExistsError) Error() string {
	return fmt.Sprintf("measurement data already exists for meas %d", e.MeasID)
}

// Store persists well data columns.
type Store interface {
	// SaveBulk writes all columns in one transaction via a bulk load.
	// Fails with *DataExistsError if any row already exists for measID;
	// at most one bulk write per measurement. On failure no rows remain.
	SaveBulk(ctx context.Context, measID int64, columns map[string][]float32) error

	// SaveColumn inserts a single column row in its own transaction. It does
	// not participate in the bulk idempotency guard; callers enforce the
	// no-duplicate-column invariant.
	SaveColumn(ctx context.Context, measID int64, column string, values []float32) error

	// ReadColumn returns one column, or ErrNotFound.
	ReadColumn(ctx context.Context, measID int64, column string) ([]float32, error)

	// ReadAll returns all columns of a measurement, keyed by column name.
	ReadAll(ctx context.Context, measID int64) (map[string][]float32, error)

	// DeleteAll removes all rows of a measurement.
	DeleteAll(ctx context.Context, measID int64) error
}
