package codestream

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies one codestream: a channel image of one well of one
// measurement.
type Key struct {
	MeasID  int64
	WellNr  int
	Channel string
}

// SourceFunc constructs the byte source for a codestream.
type SourceFunc func(key Key) ByteSource

// AccessorCache is a bounded cache of Accessor instances. Constructing an
// accessor costs one remote size fetch and repeated reads of the same image
// re-use its chunk cache, so instances are kept until evicted by entry
// count, total chunk-byte weight, or idle time.
//
// Thread-safe; eviction only removes idle entries, never the entry being
// returned.
type AccessorCache struct {
	mu         sync.Mutex
	items      map[Key]*list.Element
	evictList  *list.List
	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	size       int64

	newSource SourceFunc
	opts      []AccessorOption
	logger    *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key        Key
	accessor   *Accessor
	lastAccess time.Time
	weight     int64
}

// CacheOptions bounds the accessor cache.
type CacheOptions struct {
	// MaxEntries caps the number of cached accessors. Default: 256
	MaxEntries int
	// MaxBytes caps the total chunk bytes held by cached accessors.
	// Default: 1GiB
	MaxBytes int64
	// TTL evicts entries not accessed for this long. Default: 15m
	TTL time.Duration
}

// DefaultCacheOptions returns the default bounds.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxEntries: 256,
		MaxBytes:   1 << 30,
		TTL:        15 * time.Minute,
	}
}

// NewAccessorCache creates a cache constructing accessors via newSource.
// A nil logger falls back to slog.Default; accessorOpts apply to every
// constructed accessor.
func NewAccessorCache(newSource SourceFunc, opts CacheOptions, logger *slog.Logger, accessorOpts ...AccessorOption) *AccessorCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 256
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 1 << 30
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessorCache{
		items:      make(map[Key]*list.Element),
		evictList:  list.New(),
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		ttl:        opts.TTL,
		newSource:  newSource,
		opts:       accessorOpts,
		logger:     logger,
	}
}

// Get returns the cached accessor for key, constructing and inserting one
// (paying the one-time size fetch) on a miss or after expiry.
func (c *AccessorCache) Get(ctx context.Context, key Key) (*Accessor, error) {
	now := time.Now()

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*cacheEntry)
		if now.Sub(ent.lastAccess) < c.ttl {
			ent.lastAccess = now
			c.reweigh(ent)
			c.evictList.MoveToFront(elem)
			c.evict()
			c.mu.Unlock()
			c.hits.Add(1)
			return ent.accessor, nil
		}
		c.removeElement(elem)
	}
	c.mu.Unlock()

	c.misses.Add(1)

	// Size fetch happens outside the lock; a concurrent miss for the same
	// key may construct a second accessor, the loser is discarded below.
	accessor, err := NewAccessor(ctx, c.newSource(key), c.opts...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*cacheEntry)
		ent.lastAccess = now
		c.evictList.MoveToFront(elem)
		return ent.accessor, nil
	}

	ent := &cacheEntry{key: key, accessor: accessor, lastAccess: now, weight: accessor.CachedBytes()}
	c.items[key] = c.evictList.PushFront(ent)
	c.size += ent.weight
	c.evict()
	return accessor, nil
}

// Stats returns cache hit/miss counters.
func (c *AccessorCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached accessors.
func (c *AccessorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// reweigh refreshes the byte weight of an entry; accessor chunk caches grow
// as reads come in, so weights are updated on access.
func (c *AccessorCache) reweigh(ent *cacheEntry) {
	weight := ent.accessor.CachedBytes()
	c.size += weight - ent.weight
	ent.weight = weight
}

func (c *AccessorCache) evict() {
	for c.evictList.Len() > c.maxEntries || c.size > c.maxBytes {
		elem := c.evictList.Back()
		if elem == nil || elem == c.evictList.Front() {
			// Never evict the most recent entry, it was just handed out.
			return
		}
		c.removeElement(elem)
	}
}

func (c *AccessorCache) removeElement(elem *list.Element) {
	ent := elem.Value.(*cacheEntry)
	c.evictList.Remove(elem)
	delete(c.items, ent.key)
	c.size -= ent.weight
	c.logger.Debug("codestream accessor evicted",
		"meas_id", ent.key.MeasID, "well", ent.key.WellNr, "channel", ent.key.Channel)
}
