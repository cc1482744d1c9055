package cache

import "time"

// Cache stores venue metadata that changes rarely but is read on the order
// path.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(key string) (interface{}, bool)

	// Set stores a value for the given TTL. The return reports whether the
	// value was admitted.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a key.
	Delete(key string)

	// Close releases cache resources.
	Close()
}
