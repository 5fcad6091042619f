package artifacts

import (
	"context"
	"fmt"
	"sync"
)

// MemoryGateway serves objects from memory. It backs tests and local
// dry runs; the counters let callers assert how many fetches actually
// reached the store.
type MemoryGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
	fetches map[string]int

	// Fail, when set, makes every Fetch return this error.
	Fail error
}

// NewMemoryGateway creates an empty in-memory store.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		objects: map[string][]byte{},
		fetches: map[string]int{},
	}
}

// Put stores object bytes under bucket/objectPath.
func (g *MemoryGateway) Put(bucket, objectPath string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[bucket+"/"+objectPath] = data
}

// Delete removes an object.
func (g *MemoryGateway) Delete(bucket, objectPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, bucket+"/"+objectPath)
}

// Fetch implements Gateway.
func (g *MemoryGateway) Fetch(_ context.Context, bucket, objectPath string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := bucket + "/" + objectPath
	g.fetches[key]++
	if g.Fail != nil {
		return nil, g.Fail
	}
	data, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Fetches reports how many Fetch calls reached bucket/objectPath.
func (g *MemoryGateway) Fetches(bucket, objectPath string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches[bucket+"/"+objectPath]
}
