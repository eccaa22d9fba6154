// Package cache stores derived values (image similarity scores) keyed by
// a content hash, in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a namespace and the content the cached
// value was computed from. Equal content always maps to the same key.
func Key(namespace string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, p := range parts {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return "drillgrade:v1:" + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by the run configuration: nil when
// disabled, memory-only without a directory, layered otherwise.
func New(enabled bool, dir string, memoryTTL, diskTTL time.Duration) Cache {
	if !enabled {
		return nil
	}
	if dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, dir, diskTTL)
}
