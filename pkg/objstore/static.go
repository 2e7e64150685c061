package objstore

import (
	"context"
	"fmt"
	"sync"
)

// StaticFetcher returns the same bytes for every object. It stands in for
// the network client in tests.
type StaticFetcher struct {
	Data []byte

	mu    sync.Mutex
	calls int
}

// NewStaticFetcher returns a fetcher that always answers with data
func NewStaticFetcher(data []byte) *StaticFetcher {
	return &StaticFetcher{Data: data}
}

// Fetch returns a copy of the fixed data
func (f *StaticFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([]byte, len(f.Data))
	copy(out, f.Data)
	return out, nil
}

// Calls returns how many times Fetch was called
func (f *StaticFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MemoryFetcher serves objects from an in-memory map keyed by address.
// Missing objects are ErrNotFound.
type MemoryFetcher struct {
	mu      sync.RWMutex
	objects map[Address][]byte
	calls   map[Address]int
}

// NewMemoryFetcher creates an empty in-memory object store
func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{
		objects: make(map[Address][]byte),
		calls:   make(map[Address]int),
	}
}

// Put stores an object
func (m *MemoryFetcher) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[Address{Bucket: bucket, Key: key}] = data
}

// Fetch returns the stored object
func (m *MemoryFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := Address{Bucket: bucket, Key: key}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[addr]++
	data, ok := m.objects[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Calls returns how many times the object was fetched
func (m *MemoryFetcher) Calls(bucket, key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[Address{Bucket: bucket, Key: key}]
}
