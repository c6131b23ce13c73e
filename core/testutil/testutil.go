// Package testutil provides in-memory fakes for database sources and caches.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// ErrInjected is returned by FailingByteSource reads.
var ErrInjected = errors.New("injected read failure")

// FailingByteSource reports a size but fails every read.
type FailingByteSource struct {
	size int64
}

// NewFailingByteSource returns a source of the given size whose reads fail.
func NewFailingByteSource(size int64) *FailingByteSource {
	return &FailingByteSource{size: size}
}

// ReadAt always returns ErrInjected.
func (f *FailingByteSource) ReadAt([]byte, int64) (int, error) {
	return 0, ErrInjected
}

// Size returns the configured size.
func (f *FailingByteSource) Size() int64 {
	return f.size
}

// SourceID returns a fixed identifier.
func (f *FailingByteSource) SourceID() string {
	return "failing"
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	max  int64
	gets atomic.Int64
	hits atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get returns the cached content for key.
func (c *MockCache) Get(key []byte) ([]byte, bool) {
	c.gets.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[string(key)]
	if ok {
		c.hits.Add(1)
	}
	return data, ok
}

// Put stores a copy of data under key.
func (c *MockCache) Put(key, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[string(key)]; ok {
		return nil
	}
	c.data[string(key)] = append([]byte(nil), data...)
	return nil
}

// Delete removes cached content for key.
func (c *MockCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *MockCache) MaxBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.max
}

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Prune removes cached entries until the cache is at or below targetBytes.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	var freed int64
	for key, data := range c.data {
		if total <= targetBytes {
			break
		}
		delete(c.data, key)
		total -= int64(len(data))
		freed += int64(len(data))
	}
	return freed, nil
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns how many Get calls found an entry.
func (c *MockCache) Hits() int64 {
	return c.hits.Load()
}

// Gets returns the total number of Get calls.
func (c *MockCache) Gets() int64 {
	return c.gets.Load()
}
