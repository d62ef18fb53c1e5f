// Package cache defines the block cache used when reassembling splitfiles.
//
// Blocks are addressed by the digest of their stored bytes, so a cache hit
// can be checked against its key before use.
package cache

import "github.com/opencontainers/go-digest"

// Cache stores splitfile blocks by digest.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached bytes for dgst.
	// Returns nil, false if the block is not cached.
	Get(dgst digest.Digest) ([]byte, bool)

	// Put stores data under dgst.
	Put(dgst digest.Digest, data []byte) error

	// Delete removes the cached block for dgst.
	// Implementations should treat missing entries as a no-op.
	Delete(dgst digest.Digest) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
