// Package cache provides the key/value store contract the calendar
// backend caches through, with a Redis-backed implementation for
// production and an in-process implementation for tests and deployments
// that run without Redis.
package cache

import (
	"context"
	"time"
)

// DefaultOpTimeout bounds every operation against the backing store.
// The cache is an optimization, not a dependency, so this stays well
// below the database timeout.
const DefaultOpTimeout = 2 * time.Second

// Store is the caching contract exposed to the calendar layer.
type Store interface {
	// Get retrieves a value by key. The boolean indicates a cache hit;
	// an empty value with ok=true is a valid cached result. Backend
	// failures are reported as a miss, never as an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key, overwriting any prior entry, with
	// expiry now+ttl. Callers must pass ttl >= 1s. The returned error is
	// informational; a failed Set is a lost optimization, nothing more.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes a single entry. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every entry whose key starts with prefix and
	// reports how many were removed. Deletion is not atomic across
	// matching keys but never touches keys outside the prefix.
	DeletePattern(ctx context.Context, prefix string) (int, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Stats reports backend state for the status endpoint.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the backend connection pool.
	Close() error
}

// Stats is the operator-facing snapshot served by the status endpoint.
type Stats struct {
	Connected  bool    `json:"connected"`
	UsedMemory string  `json:"used_memory"`
	Keys       int64   `json:"keys"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}
