// Package cache provides byte-oriented response caches for aurweb queries.
//
// All backends implement [Cache]. The CLI picks one from configuration:
//   - [FileCache]: one JSON file per key under the user cache directory
//   - [MemoryCache]: process-local LRU, used by tests and one-shot runs
//   - [RedisCache]: shared cache for machines running many aurgrab jobs
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer] so that every backend sees identical key shapes.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with an optional time-to-live.
//
// Implementations must be safe for concurrent use: every engine worker shares
// the same Cache.
type Cache interface {
	// Get returns the payload for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys for the different cached payloads.
type Keyer interface {
	// RPCKey is the key for one RPC query (type + argument).
	RPCKey(queryType, arg string) string
	// RecipeKey is the key for a package's build recipe text.
	RecipeKey(pkgbase string) string
}
