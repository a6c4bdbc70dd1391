package codestream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// baseChunkSize is the starting remote fetch granularity.
	baseChunkSize = 100000

	// chunkDoubleThreshold: if the base size would split the codestream into
	// more chunks than this, the chunk size is doubled once.
	chunkDoubleThreshold = 20

	defaultFetchLimit = 16
)

// ByteSource provides sized random-access reads of one remote codestream.
type ByteSource interface {
	// Size returns the total size of the codestream in bytes.
	Size(ctx context.Context) (int64, error)

	// ReadRange returns exactly length bytes starting at offset.
	ReadRange(ctx context.Context, offset int64, length int) ([]byte, error)
}

// Accessor presents one remote, immutable codestream as a random-access byte
// source. Fetched chunks are cached for the accessor's lifetime, so a codec
// issuing many small scattered reads during progressive decoding touches the
// remote store at most once per chunk.
type Accessor struct {
	src        ByteSource
	size       int64
	chunkSize  int64
	fetchLimit int
	logger     *slog.Logger

	// mu guards chunks: both the table (growth) and the per-chunk buffer
	// pointers. A chunk buffer is immutable once set.
	mu     sync.Mutex
	chunks [][]byte

	fetches     atomic.Int64
	cachedBytes atomic.Int64
}

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithFetchLimit caps the number of parallel chunk fetches per GetBytes call.
// Default: 16.
func WithFetchLimit(n int) AccessorOption {
	return func(a *Accessor) {
		if n > 0 {
			a.fetchLimit = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) AccessorOption {
	return func(a *Accessor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAccessor fetches the codestream size and sizes the chunk table from it.
// The table covers the whole codestream up front, so well-formed reads never
// need to grow it.
func NewAccessor(ctx context.Context, src ByteSource, opts ...AccessorOption) (*Accessor, error) {
	size, err := src.Size(ctx)
	if err != nil {
		return nil, err
	}

	chunkSize := int64(baseChunkSize)
	if (size+chunkSize-1)/chunkSize > chunkDoubleThreshold {
		chunkSize *= 2
	}

	a := &Accessor{
		src:        src,
		size:       size,
		chunkSize:  chunkSize,
		fetchLimit: defaultFetchLimit,
		logger:     slog.Default(),
		chunks:     make([][]byte, (size+chunkSize-1)/chunkSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Size returns the total size of the codestream in bytes.
func (a *Accessor) Size() int64 {
	return a.size
}

// CachedBytes returns the number of chunk bytes currently held in memory.
func (a *Accessor) CachedBytes() int64 {
	return a.cachedBytes.Load()
}

// Fetches returns the number of remote chunk fetches issued so far.
func (a *Accessor) Fetches() int64 {
	return a.fetches.Load()
}

// GetBytes returns length bytes starting at offset. All chunks overlapping
// the range that are not cached yet are fetched in parallel first; a failed
// fetch fails the whole call and no partial buffer is ever returned.
func (a *Accessor) GetBytes(ctx context.Context, offset int64, length int) ([]byte, error) {
	if offset < 0 || length <= 0 {
		return nil, fmt.Errorf("invalid byte range: offset %d, length %d", offset, length)
	}
	if offset+int64(length) > a.size {
		return nil, fmt.Errorf("byte range [%d, %d) exceeds codestream size %d", offset, offset+int64(length), a.size)
	}

	startChunk := offset / a.chunkSize
	endChunk := (offset + int64(length) - 1) / a.chunkSize

	missing := a.missingChunks(startChunk, endChunk)
	if len(missing) > 0 {
		if err := a.fetchChunks(ctx, missing); err != nil {
			return nil, err
		}
	}

	buffer := make([]byte, length)
	bufferOffset := 0

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := startChunk; i <= endChunk; i++ {
		posInChunk := int64(0)
		if i == startChunk {
			posInChunk = offset % a.chunkSize
		}
		bufferOffset += copy(buffer[bufferOffset:], a.chunks[i][posInChunk:])
	}
	return buffer, nil
}

// missingChunks grows the table if needed and returns the chunk indices in
// [startChunk, endChunk] that have no buffer yet.
func (a *Accessor) missingChunks(startChunk, endChunk int64) []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Only reachable when the reported size was wrong; the table is
	// pre-sized to cover the whole codestream.
	for endChunk >= int64(len(a.chunks)) {
		grown := make([][]byte, max(2*len(a.chunks), 1))
		copy(grown, a.chunks)
		a.chunks = grown
	}

	var missing []int64
	for i := startChunk; i <= endChunk; i++ {
		if a.chunks[i] == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

func (a *Accessor) fetchChunks(ctx context.Context, chunks []int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchLimit)

	for _, i := range chunks {
		g.Go(func() error {
			chunkOffset := i * a.chunkSize
			fetchLen := min(a.chunkSize, a.size-chunkOffset)

			a.logger.Debug("fetching codestream chunk", "chunk", i, "offset", chunkOffset, "length", fetchLen)

			data, err := a.src.ReadRange(gctx, chunkOffset, int(fetchLen))
			if err != nil {
				return fmt.Errorf("chunk %d fetch failed: %w", i, err)
			}
			if int64(len(data)) != fetchLen {
				return fmt.Errorf("chunk %d fetch returned %d bytes, expected %d", i, len(data), fetchLen)
			}

			a.fetches.Add(1)

			a.mu.Lock()
			if a.chunks[i] == nil {
				a.chunks[i] = data
				a.cachedBytes.Add(int64(len(data)))
			}
			a.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}
