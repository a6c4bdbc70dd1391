package measdata

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Measurement is the metadata record of one plate measurement. The record
// itself is owned by the surrounding metadata service; this package only
// reads it for validation and updates the three column/channel registries
// as side effects of successful writes.
type Measurement struct {
	ID          int64
	Name        string
	Barcode     string
	Description string

	// Plate geometry. Well count = Rows * Columns.
	Rows    int
	Columns int

	CreatedOn time.Time
	CreatedBy string
	UpdatedOn time.Time
	UpdatedBy string

	// Sorted registries of the columns/channels that have persisted data.
	// A name is present if and only if at least one successful write
	// completed for it.
	WellColumns    []string
	SubWellColumns []string
	ImageChannels  []string

	CaptureJobID int64
}

// WellCount returns the number of wells on the plate.
func (m *Measurement) WellCount() int {
	return m.Rows * m.Columns
}

// Clone returns a deep copy.
func (m *Measurement) Clone() *Measurement {
	c := *m
	c.WellColumns = slices.Clone(m.WellColumns)
	c.SubWellColumns = slices.Clone(m.SubWellColumns)
	c.ImageChannels = slices.Clone(m.ImageChannels)
	return &c
}

// MeasurementStore provides access to measurement metadata records.
type MeasurementStore interface {
	// Get returns a measurement, or ErrNotFound.
	Get(ctx context.Context, measID int64) (*Measurement, error)

	// Exists reports whether a measurement exists.
	Exists(ctx context.Context, measID int64) (bool, error)

	// Save creates or updates a measurement record.
	Save(ctx context.Context, m *Measurement) error

	// Delete removes a measurement record, or returns ErrNotFound.
	Delete(ctx context.Context, measID int64) error
}

// MemoryMeasurementStore is an in-memory MeasurementStore for testing and
// embedding. Thread-safe for concurrent use.
type MemoryMeasurementStore struct {
	mu    sync.RWMutex
	items map[int64]*Measurement
}

// Compile time check to ensure the MeasurementStore interface is satisfied.
var _ MeasurementStore = (*MemoryMeasurementStore)(nil)

// NewMemoryMeasurementStore creates an empty store.
func NewMemoryMeasurementStore() *MemoryMeasurementStore {
	return &MemoryMeasurementStore{items: make(map[int64]*Measurement)}
}

// Get returns a measurement, or ErrNotFound.
func (s *MemoryMeasurementStore) Get(_ context.Context, measID int64) (*Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.items[measID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// Exists reports whether a measurement exists.
func (s *MemoryMeasurementStore) Exists(_ context.Context, measID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[measID]
	return ok, nil
}

// Save creates or updates a measurement record.
func (s *MemoryMeasurementStore) Save(_ context.Context, m *Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[m.ID] = m.Clone()
	return nil
}

// Delete removes a measurement record.
func (s *MemoryMeasurementStore) Delete(_ context.Context, measID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[measID]; !ok {
		return ErrNotFound
	}
	delete(s.items, measID)
	return nil
}
