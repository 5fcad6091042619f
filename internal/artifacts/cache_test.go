package artifacts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "artifacts"

const tinyModel = `{"name":"m","activation":"identity","layers":[{"weights":[[1.5]],"bias":[0.5]}]}`

func newTestCache(opts CacheOptions) (*Cache, *MemoryGateway) {
	gw := NewMemoryGateway()
	gw.Put(testBucket, "models/m/1.0.0.json", []byte(tinyModel))
	return NewCache(gw, testBucket, opts), gw
}

func TestGetFetchesDecodesAndCaches(t *testing.T) {
	c, gw := newTestCache(CacheOptions{})
	ctx := context.Background()

	m, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, m.InputWidth())

	again, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	assert.Same(t, m, again, "cached entry must be the same decoded object")
	assert.Equal(t, 1, gw.Fetches(testBucket, "models/m/1.0.0.json"))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, int64(len(tinyModel)), stats.BytesResident)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestTTLExpiry(t *testing.T) {
	c, gw := newTestCache(CacheOptions{DefaultTTL: 60 * time.Second})
	ctx := context.Background()

	base := time.Now()
	clock := base
	c.now = func() time.Time { return clock }

	_, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)

	clock = base.Add(30 * time.Second)
	_, err = c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Hits)

	clock = base.Add(61 * time.Second)
	_, err = c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Stats().Misses)
	assert.Equal(t, 2, gw.Fetches(testBucket, "models/m/1.0.0.json"))
}

func TestPerClassTTLOverride(t *testing.T) {
	c, _ := newTestCache(CacheOptions{
		DefaultTTL: time.Hour,
		TTLByClass: map[Class]time.Duration{ClassModel: time.Minute},
	})
	assert.Equal(t, time.Minute, c.ttlFor(ClassModel))
	assert.Equal(t, time.Hour, c.ttlFor(ClassScaler))
}

func TestVersionMismatchRefetches(t *testing.T) {
	c, gw := newTestCache(CacheOptions{})
	ctx := context.Background()

	gw.Put(testBucket, "models/m/2.0.0.json",
		[]byte(`{"name":"m","activation":"identity","layers":[{"weights":[[3]],"bias":[0]}]}`))

	_, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	_, err = c.Model(ctx, "m", "2.0.0")
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Evictions, "new version replaces the old entry")
	assert.Equal(t, 1, stats.EntryCount, "at most one entry per (class, key)")
}

func TestSingleFlight(t *testing.T) {
	gw := NewMemoryGateway()
	gw.Put(testBucket, "models/m/1.0.0.json", []byte(tinyModel))
	slow := &slowGateway{inner: gw, delay: 100 * time.Millisecond}
	c := NewCache(slow, testBucket, CacheOptions{})

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Model(context.Background(), "m", "1.0.0")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, 1, gw.Fetches(testBucket, "models/m/1.0.0.json"),
		"concurrent gets for one ref share a single fetch")
}

type slowGateway struct {
	inner *MemoryGateway
	delay time.Duration
}

func (g *slowGateway) Fetch(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	time.Sleep(g.delay)
	return g.inner.Fetch(ctx, bucket, objectPath)
}

func TestInvalidateAllRacesWithGets(t *testing.T) {
	c, _ := newTestCache(CacheOptions{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m, err := c.Model(ctx, "m", "1.0.0")
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, 1, m.InputWidth())
			}
		}()
	}
	for i := 0; i < 20; i++ {
		c.InvalidateAll()
	}
	wg.Wait()

	// However the race resolved, the cache must stay coherent.
	m, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, m.InputWidth())
	assert.LessOrEqual(t, c.Stats().EntryCount, 1)
}

type blockingGateway struct {
	inner   *MemoryGateway
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) Fetch(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.Fetch(ctx, bucket, objectPath)
}

func TestInvalidationWinsOverInflightFetch(t *testing.T) {
	gw := NewMemoryGateway()
	gw.Put(testBucket, "models/m/1.0.0.json", []byte(tinyModel))
	blocking := &blockingGateway{
		inner:   gw,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCache(blocking, testBucket, CacheOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Model(context.Background(), "m", "1.0.0")
		done <- err
	}()

	// The fetch is in flight; invalidating now must prevent it from
	// repopulating the cache when it completes.
	<-blocking.entered
	c.InvalidateAll()
	close(blocking.release)
	require.NoError(t, <-done)

	assert.Equal(t, 0, c.Stats().EntryCount,
		"an invalidation during a fetch discards the fetched entry")

	// The next get refetches rather than serving the discarded entry.
	// The release channel is already closed, so it no longer blocks.
	go func() {
		_, err := c.Model(context.Background(), "m", "1.0.0")
		done <- err
	}()
	<-blocking.entered
	require.NoError(t, <-done)
	assert.Equal(t, 1, c.Stats().EntryCount)
	assert.Equal(t, 2, gw.Fetches(testBucket, "models/m/1.0.0.json"))
}

func TestInvalidateClassLeavesOtherClasses(t *testing.T) {
	c, gw := newTestCache(CacheOptions{})
	gw.Put(testBucket, "scalers/m/1.0.0.json", []byte(`{"params":{}}`))
	ctx := context.Background()

	_, err := c.Model(ctx, "m", "1.0.0")
	require.NoError(t, err)
	_, err = c.Scaler(ctx, "m", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, 1, c.InvalidateClass(ClassModel))
	stats := c.Stats()
	assert.Equal(t, 1, stats.EntryCount)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestGetErrorTaxonomy(t *testing.T) {
	c, gw := newTestCache(CacheOptions{})
	ctx := context.Background()

	_, err := c.Model(ctx, "missing", "1.0.0")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	gw.Put(testBucket, "models/broken/1.0.0.json", []byte(`{"layers":[`))
	_, err = c.Model(ctx, "broken", "1.0.0")
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)

	gw.Fail = ErrUnavailable
	_, err = c.Model(ctx, "m", "9.9.9")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestGetWithoutDecoder(t *testing.T) {
	c, gw := newTestCache(CacheOptions{})
	gw.Put(testBucket, "strategies/s/1.0.0.yaml", []byte("name: s"))

	_, err := c.Get(context.Background(), ClassStrategy, "s", "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no decoder registered")
}
