package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const chunkSize = 100000
	sizes := []int{0, 1, chunkSize - 1, chunkSize, chunkSize + 1, 3 * 1024 * 1024}

	for _, size := range sizes {
		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)

		key := fmt.Sprintf("imagedata.1.ch%d", size)
		require.NoError(t, store.Put(ctx, 42, key, data))

		got, err := store.Get(ctx, 42, key)
		require.NoError(t, err)
		require.True(t, bytes.Equal(data, got), "round trip mismatch for size %d", size)

		n, err := store.Size(ctx, 42, key)
		require.NoError(t, err)
		assert.Equal(t, int64(size), n)
	}
}

func TestMemoryStore_GetRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("0123456789abcdef")
	require.NoError(t, store.Put(ctx, 7, "imagedata.1.DAPI", data))

	got, err := store.GetRange(ctx, 7, "imagedata.1.DAPI", 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), got)

	// length <= 0 returns the whole object
	got, err = store.GetRange(ctx, 7, "imagedata.1.DAPI", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// range beyond the end is truncated
	got, err = store.GetRange(ctx, 7, "imagedata.1.DAPI", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Exists(ctx, 1, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Size(ctx, 1, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, 1, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListCompleteness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 2500; i++ {
		key := fmt.Sprintf("subwelldata.area.%d", i+1)
		require.NoError(t, store.Put(ctx, 99, key, []byte{1}))
	}
	// Another measurement and another prefix must not leak into the listing.
	require.NoError(t, store.Put(ctx, 98, "subwelldata.area.1", []byte{1}))
	require.NoError(t, store.Put(ctx, 99, "imagedata.1.DAPI", []byte{1}))

	keys, err := store.List(ctx, 99, "subwelldata.area.")
	require.NoError(t, err)
	require.Len(t, keys, 2500)

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		require.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestMemoryStore_DeleteBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("subwelldata.area.%d", i+1)
		require.NoError(t, store.Put(ctx, 5, keys[i], []byte{1}))
	}

	require.NoError(t, store.DeleteBatch(ctx, 5, keys))

	for _, size := range store.DeleteBatchSizes() {
		assert.LessOrEqual(t, size, DeleteBatchLimit)
	}
	assert.Len(t, store.DeleteBatchSizes(), 3)

	for _, key := range keys {
		ok, err := store.Exists(ctx, 5, key)
		require.NoError(t, err)
		require.False(t, ok, "key %s still exists", key)
	}
}
