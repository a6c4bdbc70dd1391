package codestream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource serves a byte slice as a ByteSource and counts remote reads.
type memSource struct {
	data      []byte
	reads     atomic.Int64
	failAfter int64 // fail reads once the counter exceeds this; 0 disables
}

func (s *memSource) Size(context.Context) (int64, error) {
	return int64(len(s.data)), nil
}

func (s *memSource) ReadRange(_ context.Context, offset int64, length int) ([]byte, error) {
	n := s.reads.Add(1)
	if s.failAfter > 0 && n > s.failAfter {
		return nil, errors.New("remote read failed")
	}
	if offset < 0 || offset+int64(length) > int64(len(s.data)) {
		return nil, fmt.Errorf("range [%d, %d) out of bounds", offset, offset+int64(length))
	}
	return s.data[offset : offset+int64(length)], nil
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.New(rand.NewSource(1)).Read(data)
	require.NoError(t, err)
	return data
}

func TestAccessor_GetBytesMatchesSource(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, 3*baseChunkSize+12345)
	src := &memSource{data: data}

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), a.Size())

	ranges := []struct {
		offset int64
		length int
	}{
		{0, 1},
		{0, len(data)},
		{baseChunkSize - 1, 2},
		{baseChunkSize, baseChunkSize},
		{int64(len(data)) - 1, 1},
		{12345, 2*baseChunkSize + 7},
	}
	for _, r := range ranges {
		got, err := a.GetBytes(ctx, r.offset, r.length)
		require.NoError(t, err)
		assert.Equal(t, data[r.offset:r.offset+int64(r.length)], got,
			"range offset=%d length=%d", r.offset, r.length)
	}
}

func TestAccessor_NoRedundantFetches(t *testing.T) {
	ctx := context.Background()
	src := &memSource{data: randomBytes(t, 4*baseChunkSize)}

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)

	_, err = a.GetBytes(ctx, 0, 2*baseChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Fetches())

	// Chunks 0 and 1 are cached; only chunk 2 needs fetching.
	_, err = a.GetBytes(ctx, baseChunkSize/2, 2*baseChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.Fetches())

	// Fully cached range touches the remote store not at all.
	_, err = a.GetBytes(ctx, 10, baseChunkSize)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.Fetches())

	assert.Equal(t, int64(3*baseChunkSize), a.CachedBytes())
}

func TestAccessor_ChunkSizeDoubling(t *testing.T) {
	ctx := context.Background()

	// 21 base chunks exceed the threshold; the chunk size doubles once.
	src := &memSource{data: randomBytes(t, 21*baseChunkSize)}
	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(2*baseChunkSize), a.chunkSize)

	// 20 base chunks keep the base size.
	src = &memSource{data: randomBytes(t, 20*baseChunkSize)}
	a, err = NewAccessor(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(baseChunkSize), a.chunkSize)
}

func TestAccessor_LastChunkIsShort(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, baseChunkSize+10)
	src := &memSource{data: data}

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)

	got, err := a.GetBytes(ctx, baseChunkSize, 10)
	require.NoError(t, err)
	assert.Equal(t, data[baseChunkSize:], got)
	assert.Equal(t, int64(10), a.CachedBytes())
}

func TestAccessor_InvalidRanges(t *testing.T) {
	ctx := context.Background()
	src := &memSource{data: randomBytes(t, 100)}

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)

	_, err = a.GetBytes(ctx, -1, 10)
	assert.Error(t, err)
	_, err = a.GetBytes(ctx, 0, 0)
	assert.Error(t, err)
	_, err = a.GetBytes(ctx, 50, 51)
	assert.Error(t, err)

	assert.Equal(t, int64(0), a.Fetches())
}

func TestAccessor_ChunkTableGrowsForMisreportedSize(t *testing.T) {
	ctx := context.Background()
	src := &memSource{data: randomBytes(t, baseChunkSize)}

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)
	require.Len(t, a.chunks, 1)

	// A chunk index past the pre-sized table grows it instead of panicking.
	missing := a.missingChunks(0, 5)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, missing)
	assert.GreaterOrEqual(t, len(a.chunks), 6)

	// Growth preserves chunks cached before it.
	a.mu.Lock()
	a.chunks[0] = []byte{1}
	a.mu.Unlock()

	missing = a.missingChunks(0, 20)
	assert.NotContains(t, missing, int64(0))
	assert.GreaterOrEqual(t, len(a.chunks), 21)

	a.mu.Lock()
	assert.Equal(t, []byte{1}, a.chunks[0])
	a.mu.Unlock()
}

func TestAccessor_FetchFailurePropagates(t *testing.T) {
	ctx := context.Background()
	src := &memSource{data: randomBytes(t, 3*baseChunkSize)}
	// The size call uses no read; allow one chunk read, fail the rest.
	src.failAfter = 1

	a, err := NewAccessor(ctx, src)
	require.NoError(t, err)

	_, err = a.GetBytes(ctx, 0, 3*baseChunkSize)
	require.Error(t, err)

	// A retry after the source recovers still yields the full range.
	src.failAfter = 0
	got, err := a.GetBytes(ctx, 0, 3*baseChunkSize)
	require.NoError(t, err)
	assert.Equal(t, src.data, got)
}
