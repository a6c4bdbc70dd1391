package blobstore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-memory Store implementation for testing.
// It stores objects under their physical keys so that the key codec and
// prefix listing behave exactly like a remote store.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	rangeReads  atomic.Int64
	batchSizes  []int
	batchSizeMu sync.Mutex
}

// NewMemoryStore creates a new in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Exists reports whether an object exists.
func (m *MemoryStore) Exists(_ context.Context, measID int64, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[MakeKey(measID, key)]
	return ok, nil
}

// Size returns the size of an object in bytes.
func (m *MemoryStore) Size(_ context.Context, measID int64, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[MakeKey(measID, key)]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

// Get returns the full contents of an object.
func (m *MemoryStore) Get(ctx context.Context, measID int64, key string) ([]byte, error) {
	return m.GetRange(ctx, measID, key, 0, -1)
}

// GetRange returns length bytes starting at offset.
// A length <= 0 returns the whole object.
func (m *MemoryStore) GetRange(_ context.Context, measID int64, key string, offset int64, length int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.rangeReads.Add(1)

	data, ok := m.blobs[MakeKey(measID, key)]
	if !ok {
		return nil, ErrNotFound
	}
	if length <= 0 {
		return append([]byte(nil), data...), nil
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return append([]byte(nil), data[offset:end]...), nil
}

// Put writes an object.
func (m *MemoryStore) Put(_ context.Context, measID int64, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to prevent external mutation
	copied := make([]byte, len(data))
	copy(copied, data)
	m.blobs[MakeKey(measID, key)] = copied
	return nil
}

// List returns all logical keys under the given logical prefix.
func (m *MemoryStore) List(_ context.Context, measID int64, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	physPrefix := MakeKey(measID, prefix)
	var keys []string
	for name := range m.blobs {
		if strings.HasPrefix(name, physPrefix) {
			keys = append(keys, ParseKey(name))
		}
	}
	return keys, nil
}

// DeleteBatch deletes the given logical keys in groups of at most
// DeleteBatchLimit, recording the group sizes for test inspection.
func (m *MemoryStore) DeleteBatch(_ context.Context, measID int64, keys []string) error {
	for _, group := range SplitKeys(keys, DeleteBatchLimit) {
		m.batchSizeMu.Lock()
		m.batchSizes = append(m.batchSizes, len(group))
		m.batchSizeMu.Unlock()

		m.mu.Lock()
		for _, key := range group {
			delete(m.blobs, MakeKey(measID, key))
		}
		m.mu.Unlock()
	}
	return nil
}

// RangeReads returns the number of Get/GetRange calls issued so far.
func (m *MemoryStore) RangeReads() int64 {
	return m.rangeReads.Load()
}

// DeleteBatchSizes returns the sizes of all delete groups issued so far.
func (m *MemoryStore) DeleteBatchSizes() []int {
	m.batchSizeMu.Lock()
	defer m.batchSizeMu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
