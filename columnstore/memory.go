package columnstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64]map[string][]float32
}

// Compile time check to ensure MemoryStore satisfies the Store interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory column store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[int64]map[string][]float32),
	}
}

// SaveBulk writes all columns atomically. A second bulk write for the same
// measurement fails with *DataExistsError without persisting anything.
func (m *MemoryStore) SaveBulk(_ context.Context, measID int64, columns map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.data[measID]) > 0 {
		return &DataExistsError{MeasID: measID}
	}

	rows := make(map[string][]float32, len(columns))
	for column, values := range columns {
		rows[column] = append([]float32(nil), values...)
	}
	m.data[measID] = rows
	return nil
}

// SaveColumn inserts a single column row.
func (m *MemoryStore) SaveColumn(_ context.Context, measID int64, column string, values []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.data[measID]
	if !ok {
		rows = make(map[string][]float32)
		m.data[measID] = rows
	}
	rows[column] = append([]float32(nil), values...)
	return nil
}

// ReadColumn returns one column, or ErrNotFound.
func (m *MemoryStore) ReadColumn(_ context.Context, measID int64, column string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values, ok := m.data[measID][column]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]float32(nil), values...), nil
}

// ReadAll returns all columns of a measurement.
func (m *MemoryStore) ReadAll(_ context.Context, measID int64) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]float32, len(m.data[measID]))
	for column, values := range m.data[measID] {
		result[column] = append([]float32(nil), values...)
	}
	return result, nil
}

// DeleteAll removes all rows of a measurement.
func (m *MemoryStore) DeleteAll(_ context.Context, measID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, measID)
	return nil
}

// RowCount returns the number of stored rows for a measurement.
func (m *MemoryStore) RowCount(measID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[measID])
}
