package artifacts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DecodeFunc turns fetched bytes into a decoded artifact. Decoders for
// the built-in classes are installed by default; callers register extra
// classes (the strategy document) before first use.
type DecodeFunc func(data []byte) (any, error)

// Stats is a point-in-time snapshot of cache counters. Hits, misses and
// evictions are monotonic since process start.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	BytesResident int64  `json:"bytesResident"`
	EntryCount    int    `json:"entryCount"`
}

// CacheOptions configures entry expiry per class.
type CacheOptions struct {
	// DefaultTTL applies to classes without an override.
	DefaultTTL time.Duration
	// TTLByClass overrides expiry for specific classes.
	TTLByClass map[Class]time.Duration
}

type entryKey struct {
	class Class
	key   string
}

type entry struct {
	artifact       any
	version        string
	insertedAt     time.Time
	lastAccessedAt time.Time
	sizeBytes      int
}

// Cache is the versioned in-memory artifact cache. It sits between the
// object-store gateway and every artifact consumer.
//
// Invariants:
//   - at most one entry per (class, key); a new version evicts the old
//   - an entry's artifact always matches its stored version tag
//   - fetch and decode happen outside the entry lock; concurrent gets
//     for the same (class, key, version) share a single fetch
type Cache struct {
	gateway Gateway
	bucket  string
	opts    CacheOptions

	mu       sync.Mutex
	entries  map[entryKey]*entry
	decoders map[Class]DecodeFunc
	flight   singleflight.Group

	// gen advances on every invalidation; a fetch that started under
	// an older generation completes but is not installed, so the
	// invalidation wins over in-flight fetches.
	gen uint64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	// now is swapped out by expiry tests.
	now func() time.Time
}

// NewCache builds a cache over the given gateway and bucket.
func NewCache(gateway Gateway, bucket string, opts CacheOptions) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 24 * time.Hour
	}
	return &Cache{
		gateway: gateway,
		bucket:  bucket,
		opts:    opts,
		entries: make(map[entryKey]*entry),
		decoders: map[Class]DecodeFunc{
			ClassModel:    func(b []byte) (any, error) { return DecodeModel(b) },
			ClassScaler:   func(b []byte) (any, error) { return DecodeScaler(b) },
			ClassMetadata: func(b []byte) (any, error) { return DecodeMetadata(b) },
		},
		now: time.Now,
	}
}

// RegisterDecoder installs the decoder for a class. Must be called
// before any Get for that class.
func (c *Cache) RegisterDecoder(class Class, fn DecodeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders[class] = fn
}

func (c *Cache) ttlFor(class Class) time.Duration {
	if ttl, ok := c.opts.TTLByClass[class]; ok && ttl > 0 {
		return ttl
	}
	return c.opts.DefaultTTL
}

// Get returns the artifact for ref, fetching and decoding it when the
// cached entry is absent, stale, or tagged with a different version.
// Fetch failures surface ErrUnavailable/ErrNotFound, decode failures
// ErrCorrupt; neither is retried here.
func (c *Cache) Get(ctx context.Context, class Class, key, version string) (any, error) {
	k := entryKey{class: class, key: key}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		fresh := c.now().Sub(e.insertedAt) < c.ttlFor(class)
		if e.version == version && fresh {
			e.lastAccessedAt = c.now()
			artifact := e.artifact
			c.mu.Unlock()
			c.hits.Add(1)
			return artifact, nil
		}
	}
	c.mu.Unlock()

	c.misses.Add(1)

	ref := Ref{Class: class, Key: key, Version: version}
	v, err, _ := c.flight.Do(ref.String(), func() (any, error) {
		return c.fetchAndStore(ctx, ref, k)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// fetchAndStore runs outside the entry lock; only the final map
// mutation is inside it.
func (c *Cache) fetchAndStore(ctx context.Context, ref Ref, k entryKey) (any, error) {
	decoder, ok := c.decoderFor(ref.Class)
	if !ok {
		return nil, fmt.Errorf("no decoder registered for class %q", ref.Class)
	}

	c.mu.Lock()
	startGen := c.gen
	c.mu.Unlock()

	data, err := c.gateway.Fetch(ctx, c.bucket, ref.ObjectPath())
	if err != nil {
		return nil, err
	}
	artifact, err := decoder(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen != startGen {
		// Invalidated while the fetch was in flight. Serve the caller
		// but leave the map empty; the next Get refetches.
		c.mu.Unlock()
		return artifact, nil
	}
	if _, existed := c.entries[k]; existed {
		c.evictions.Add(1)
	}
	now := c.now()
	c.entries[k] = &entry{
		artifact:       artifact,
		version:        ref.Version,
		insertedAt:     now,
		lastAccessedAt: now,
		sizeBytes:      len(data),
	}
	c.mu.Unlock()
	return artifact, nil
}

func (c *Cache) decoderFor(class Class) (DecodeFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.decoders[class]
	return fn, ok
}

// Invalidate evicts the entry for (class, key), if present.
func (c *Cache) Invalidate(class Class, key string) {
	c.mu.Lock()
	c.gen++
	k := entryKey{class: class, key: key}
	if _, ok := c.entries[k]; ok {
		delete(c.entries, k)
		c.evictions.Add(1)
	}
	c.mu.Unlock()
}

// InvalidateClass evicts every entry of the given class and returns the
// number evicted. Used when the deployed version of a class changes.
func (c *Cache) InvalidateClass(class Class) int {
	c.mu.Lock()
	c.gen++
	n := 0
	for k := range c.entries {
		if k.class == class {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()
	c.evictions.Add(uint64(n))
	return n
}

// InvalidateAll evicts everything and returns the number evicted.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	c.gen++
	n := len(c.entries)
	c.entries = make(map[entryKey]*entry)
	c.mu.Unlock()
	c.evictions.Add(uint64(n))
	return n
}

// Stats snapshots the cache counters without blocking writers for more
// than the map walk.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	var bytes int64
	for _, e := range c.entries {
		bytes += int64(e.sizeBytes)
	}
	count := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		BytesResident: bytes,
		EntryCount:    count,
	}
}

// Model resolves and type-asserts a model artifact.
func (c *Cache) Model(ctx context.Context, key, version string) (*Model, error) {
	v, err := c.Get(ctx, ClassModel, key, version)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Model)
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s is not a model: %w", ClassModel, key, ErrCorrupt)
	}
	return m, nil
}

// Metadata resolves and type-asserts a metadata artifact.
func (c *Cache) Metadata(ctx context.Context, key, version string) (Metadata, error) {
	v, err := c.Get(ctx, ClassMetadata, key, version)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Metadata)
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s is not metadata: %w", ClassMetadata, key, ErrCorrupt)
	}
	return m, nil
}

// Scaler resolves and type-asserts a scaler artifact.
func (c *Cache) Scaler(ctx context.Context, key, version string) (*Scaler, error) {
	v, err := c.Get(ctx, ClassScaler, key, version)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*Scaler)
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s is not a scaler: %w", ClassScaler, key, ErrCorrupt)
	}
	return s, nil
}
