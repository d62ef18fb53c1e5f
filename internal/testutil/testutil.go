// Package testutil holds test data generators and fakes shared by the
// package tests.
package testutil

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/keyutils/cache"
)

// RandomBytes returns n deterministic pseudo-random bytes for seed.
func RandomBytes(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // deterministic test data
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

// CompressibleBytes returns n bytes of repeating text.
func CompressibleBytes(n int) []byte {
	pattern := []byte("This is a repeating pattern for compression testing. ")
	result := make([]byte, 0, n+len(pattern))
	for len(result) < n {
		result = append(result, pattern...)
	}
	return result[:n]
}

var _ cache.Cache = (*MockCache)(nil)

// MockCache is an unbounded in-memory cache.Cache that counts hits and
// misses.
type MockCache struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[digest.Digest][]byte)}
}

// Get retrieves a block by digest.
func (c *MockCache) Get(dgst digest.Digest) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[dgst]
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return data, ok
}

// Put stores a block by digest.
func (c *MockCache) Put(dgst digest.Digest, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[dgst] = append([]byte(nil), data...)
	return nil
}

// Delete removes a block.
func (c *MockCache) Delete(dgst digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, dgst)
	return nil
}

// MaxBytes reports no limit.
func (c *MockCache) MaxBytes() int64 { return 0 }

// SizeBytes returns the total size of the stored blocks.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, b := range c.data {
		n += int64(len(b))
	}
	return n
}

// Prune drops every block when the cache is above targetBytes.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	size := c.SizeBytes()
	if size <= targetBytes {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
	return size, nil
}

// Len returns the number of cached blocks.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns the number of Get calls that found a block.
func (c *MockCache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of Get calls that found nothing.
func (c *MockCache) Misses() int64 { return c.misses.Load() }
